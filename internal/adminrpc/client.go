package adminrpc

import (
	"context"

	"google.golang.org/grpc"

	"practice-portal/internal/model"
)

// Client calls the admin service with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, FullMethod(method), in, out, opts...)
}

func (c *Client) DashboardStats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*model.DashboardStats, error) {
	out := new(model.DashboardStats)
	if err := c.invoke(ctx, "DashboardStats", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	out := new(ListAppointmentsResponse)
	if err := c.invoke(ctx, "ListAppointments", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetAppointmentStatus(ctx context.Context, in *SetAppointmentStatusRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	out := new(AppointmentResponse)
	if err := c.invoke(ctx, "SetAppointmentStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListLeads(ctx context.Context, in *ListLeadsRequest, opts ...grpc.CallOption) (*ListLeadsResponse, error) {
	out := new(ListLeadsResponse)
	if err := c.invoke(ctx, "ListLeads", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResolveLead(ctx context.Context, in *ResolveLeadRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "ResolveLead", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSubscribers(ctx context.Context, in *ListSubscribersRequest, opts ...grpc.CallOption) (*ListSubscribersResponse, error) {
	out := new(ListSubscribersResponse)
	if err := c.invoke(ctx, "ListSubscribers", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PublishPost(ctx context.Context, in *PublishPostRequest, opts ...grpc.CallOption) (*PostResponse, error) {
	out := new(PostResponse)
	if err := c.invoke(ctx, "PublishPost", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
