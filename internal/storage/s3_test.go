package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignGet(t *testing.T) {
	s, err := NewS3(context.Background(), Config{
		Endpoint:     "http://localhost:9000",
		Region:       "us-east-1",
		Bucket:       "resources",
		AccessKeyID:  "test",
		SecretKey:    "testsecret",
		UsePathStyle: true,
		PresignTTL:   10 * time.Minute,
	})
	require.NoError(t, err)

	raw, exp, err := s.PresignGet(context.Background(), "worksheets/grounding.pdf", "grounding.pdf")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), exp, 5*time.Second)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/resources/worksheets/grounding.pdf", u.Path)
	q := u.Query()
	assert.Equal(t, "600", q.Get("X-Amz-Expires"))
	assert.Contains(t, q.Get("response-content-disposition"), "grounding.pdf")
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
}
