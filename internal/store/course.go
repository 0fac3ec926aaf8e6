package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"practice-portal/internal/model"
)

const courseCols = `id, slug, title, summary, description_markdown, price_cents, currency, stripe_price_id, published, created_at`

func scanCourse(row interface{ Scan(...any) error }) (*model.Course, error) {
	c := &model.Course{}
	err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.Summary, &c.DescriptionMarkdown,
		&c.PriceCents, &c.Currency, &c.StripePriceID, &c.Published, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (s *Store) ListPublishedCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+courseCols+` FROM courses WHERE published ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CourseBySlug loads a course with its lessons in position order.
func (s *Store) CourseBySlug(ctx context.Context, slug string) (*model.Course, error) {
	c, err := scanCourse(s.pool.QueryRow(ctx,
		`SELECT `+courseCols+` FROM courses WHERE slug = $1`, slug))
	if err != nil {
		return nil, err
	}
	c.Lessons, err = s.lessons(ctx, c.ID)
	return c, err
}

func (s *Store) CourseByID(ctx context.Context, id string) (*model.Course, error) {
	c, err := scanCourse(s.pool.QueryRow(ctx,
		`SELECT `+courseCols+` FROM courses WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	c.Lessons, err = s.lessons(ctx, c.ID)
	return c, err
}

func (s *Store) lessons(ctx context.Context, courseID string) ([]model.Lesson, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, course_id, position, title, body_markdown, duration_minutes
		 FROM lessons WHERE course_id = $1 ORDER BY position`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Position, &l.Title, &l.BodyMarkdown, &l.DurationMinutes); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const enrollmentCols = `id, user_id, course_id, status, checkout_session_id, enrolled_at, created_at`

func scanEnrollment(row interface{ Scan(...any) error }) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.CheckoutSessionID, &e.EnrolledAt, &e.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return e, nil
}

func (s *Store) Enrollment(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	return scanEnrollment(s.pool.QueryRow(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID))
}

func (s *Store) EnrollmentByID(ctx context.Context, id string) (*model.Enrollment, error) {
	return scanEnrollment(s.pool.QueryRow(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE id=$1`, id))
}

// UpsertPendingEnrollment creates a pending enrollment, or returns the
// existing one untouched if the user already has a row for the course.
func (s *Store) UpsertPendingEnrollment(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	return scanEnrollment(s.pool.QueryRow(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, status) VALUES ($1,$2,$3,'pending')
		 ON CONFLICT (user_id, course_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING `+enrollmentCols, uuid.New().String(), userID, courseID))
}

func (s *Store) SetCheckoutSession(ctx context.Context, enrollmentID, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE enrollments SET checkout_session_id=$2 WHERE id=$1`, enrollmentID, sessionID)
	return err
}

func (s *Store) ActivateEnrollment(ctx context.Context, enrollmentID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrollments SET status='active', enrolled_at=COALESCE(enrolled_at, $2) WHERE id=$1`,
		enrollmentID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveEnrollments returns the user's active enrollments with courses loaded.
func (s *Store) ActiveEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE user_id=$1 AND status='active' ORDER BY enrolled_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) CompleteLesson(ctx context.Context, userID, lessonID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lesson_progress (user_id, lesson_id) VALUES ($1,$2)
		 ON CONFLICT (user_id, lesson_id) DO NOTHING`, userID, lessonID)
	return mapErr(err)
}

// CompletedLessons returns the set of lesson ids the user finished in a course.
func (s *Store) CompletedLessons(ctx context.Context, userID, courseID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT lp.lesson_id FROM lesson_progress lp
		 JOIN lessons l ON l.id = lp.lesson_id
		 WHERE lp.user_id = $1 AND l.course_id = $2`, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}
