package store

import (
	"context"

	"practice-portal/internal/model"
)

const userCols = `id, email, password_hash, name, phone, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.Role == "" {
		u.Role = model.RoleClient
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, phone, role) VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.Role,
	)
	return mapErr(err)
}

// ClaimPasswordless sets the password on an account that was created without
// one (a Calendly invitee). ErrNotFound means no such account exists.
func (s *Store) ClaimPasswordless(ctx context.Context, email, hash, name, phone string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET password_hash=$2,
		        name=COALESCE(NULLIF($3,''), name),
		        phone=COALESCE(NULLIF($4,''), phone),
		        updated_at=NOW()
		 WHERE lower(email)=lower($1) AND password_hash=''
		 RETURNING `+userCols, email, hash, name, phone))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (s *Store) UpdateProfile(ctx context.Context, id, name, phone string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET name=$2, phone=$3, updated_at=NOW() WHERE id=$1
		 RETURNING `+userCols, id, name, phone))
}

// SetRole backs `practicectl users set-role`.
func (s *Store) SetRole(ctx context.Context, email, role string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET role=$2, updated_at=NOW() WHERE lower(email)=lower($1)`, email, role)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
