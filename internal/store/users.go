package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is a row of _users.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	Active       bool
}

// RefreshToken is a row of _refresh_tokens joined with its owner.
type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	Roles     []string
	Active    bool
}

// UserRepo reads and writes users and their refresh tokens.
type UserRepo struct {
	store *Store
}

func NewUserRepo(s *Store) *UserRepo {
	return &UserRepo{store: s}
}

// Create inserts a user and returns its generated id.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string, roles []string) (string, error) {
	d := r.store.Dialect
	id := uuid.NewString()
	pb := d.NewParamBuilder()
	q := fmt.Sprintf("INSERT INTO _users (id, email, password_hash, roles) VALUES (%s, %s, %s, %s)",
		pb.Add(id), pb.Add(email), pb.Add(passwordHash), pb.Add(d.ArrayParam(roles)))
	if _, err := r.store.DB.ExecContext(ctx, q, pb.Params()...); err != nil {
		return "", d.MapError(err)
	}
	return id, nil
}

// FindByEmail returns the user with the given email or ErrNotFound.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	d := r.store.Dialect
	pb := d.NewParamBuilder()
	q := fmt.Sprintf("SELECT id, email, password_hash, roles, active FROM _users WHERE email = %s", pb.Add(email))

	var u User
	var roles any
	err := r.store.DB.QueryRowContext(ctx, q, pb.Params()...).Scan(&u.ID, &u.Email, &u.PasswordHash, &roles, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u.Roles, err = d.ScanArray(roles); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateRefreshToken stores an opaque token for the user.
func (r *UserRepo) CreateRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	pb := r.store.Dialect.NewParamBuilder()
	q := fmt.Sprintf("INSERT INTO _refresh_tokens (id, user_id, token, expires_at) VALUES (%s, %s, %s, %s)",
		pb.Add(uuid.NewString()), pb.Add(userID), pb.Add(token), pb.Add(formatTimestamp(expiresAt)))
	if _, err := r.store.DB.ExecContext(ctx, q, pb.Params()...); err != nil {
		return r.store.Dialect.MapError(err)
	}
	return nil
}

// FindRefreshToken looks a token up together with its owner's roles.
func (r *UserRepo) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	d := r.store.Dialect
	pb := d.NewParamBuilder()
	q := fmt.Sprintf(`SELECT rt.id, rt.user_id, rt.expires_at, u.roles, u.active
		FROM _refresh_tokens rt
		JOIN _users u ON u.id = rt.user_id
		WHERE rt.token = %s`, pb.Add(token))

	row, err := QueryRow(ctx, r.store.DB, q, pb.Params()...)
	if err != nil {
		return nil, err
	}
	if d.NeedsBoolFix() {
		NormalizeBooleans([]map[string]any{row}, []string{"active"})
	}
	rt := &RefreshToken{
		ID:        toString(row["id"]),
		UserID:    toString(row["user_id"]),
		ExpiresAt: toTime(row["expires_at"]),
	}
	rt.Active, _ = row["active"].(bool)
	if rt.Roles, err = d.ScanArray(row["roles"]); err != nil {
		return nil, err
	}
	return rt, nil
}

// DeleteRefreshToken removes a token; deleting a missing token is not an error.
func (r *UserRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	pb := r.store.Dialect.NewParamBuilder()
	q := fmt.Sprintf("DELETE FROM _refresh_tokens WHERE token = %s", pb.Add(token))
	_, err := Exec(ctx, r.store.DB, q, pb.Params()...)
	return err
}
