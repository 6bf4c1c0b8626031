package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"storefront-client/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

func NewPostgres(pool *pgxpool.Pool, logger logrus.FieldLogger) Repository {
	return &postgresRepo{pool: pool, logger: logger.WithField("repo", "session")}
}

func (r *postgresRepo) Get(ctx context.Context, profile string) (*domain.Session, error) {
	const q = `
SELECT access_token, refresh_token, user_data, saved_at
FROM sessions
WHERE profile = $1
LIMIT 1
`
	var out domain.Session
	var userData []byte
	if err := r.pool.QueryRow(ctx, q, profile).Scan(
		&out.AccessToken,
		&out.RefreshToken,
		&userData,
		&out.SavedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(userData) > 0 {
		var user domain.User
		if err := json.Unmarshal(userData, &user); err != nil {
			// A corrupt identity blob should not lock the user out of their tokens.
			r.logger.WithError(err).WithField("profile", profile).Warn("discarding unreadable user data")
		} else {
			out.User = &user
		}
	}
	return &out, nil
}

func (r *postgresRepo) Save(ctx context.Context, profile string, s domain.Session) error {
	const q = `
INSERT INTO sessions (profile, access_token, refresh_token, user_data, saved_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (profile) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    user_data = EXCLUDED.user_data,
    saved_at = EXCLUDED.saved_at
`
	var userData []byte
	if s.User != nil {
		b, err := json.Marshal(s.User)
		if err != nil {
			return err
		}
		userData = b
	}
	_, err := r.pool.Exec(ctx, q, profile, s.AccessToken, s.RefreshToken, userData, s.SavedAt)
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, profile string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE profile = $1`, profile)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
