package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapret-labs/tracker/internal/domain"
)

// SessionRepository manages opaque login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Touch(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository instantiates repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	const query = `
        INSERT INTO sessions (token, user_id)
        VALUES ($1,$2)
        RETURNING created_at, last_used`
	return r.pool.QueryRow(ctx, query, session.Token, session.UserID).
		Scan(&session.CreatedAt, &session.LastUsed)
}

func (r *sessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	const query = `SELECT token, user_id, created_at, last_used FROM sessions WHERE token=$1`
	var session domain.Session
	if err := r.pool.QueryRow(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.CreatedAt,
		&session.LastUsed,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Touch(ctx context.Context, token string) error {
	const query = `UPDATE sessions SET last_used=NOW() WHERE token=$1`
	_, err := r.pool.Exec(ctx, query, token)
	return err
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE token=$1`
	cmd, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	const query = `DELETE FROM sessions WHERE last_used < NOW() - ($1 * INTERVAL '1 second')`
	cmd, err := r.pool.Exec(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
