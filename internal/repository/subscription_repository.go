package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapret-labs/tracker/internal/domain"
)

// SubscriptionRepository encapsulates ticket subscription persistence.
// ListSubscribers returns whole user rows so notification gating
// (chat id, preference flags, actor exclusion) happens in one place in
// the service layer, not spread across SQL.
type SubscriptionRepository interface {
	Subscribe(ctx context.Context, userID, ticketID int64) error
	Unsubscribe(ctx context.Context, userID, ticketID int64) error
	IsSubscribed(ctx context.Context, userID, ticketID int64) (bool, error)
	ListSubscribers(ctx context.Context, ticketID int64) ([]domain.User, error)
	ListUserSubscriptions(ctx context.Context, userID int64) ([]int64, error)
}

type subscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository instantiates repository.
func NewSubscriptionRepository(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepository{pool: pool}
}

func (r *subscriptionRepository) Subscribe(ctx context.Context, userID, ticketID int64) error {
	const query = `
        INSERT INTO subscriptions (user_id, ticket_id) VALUES ($1,$2)
        ON CONFLICT DO NOTHING`
	_, err := r.pool.Exec(ctx, query, userID, ticketID)
	return err
}

func (r *subscriptionRepository) Unsubscribe(ctx context.Context, userID, ticketID int64) error {
	const query = `DELETE FROM subscriptions WHERE user_id=$1 AND ticket_id=$2`
	_, err := r.pool.Exec(ctx, query, userID, ticketID)
	return err
}

func (r *subscriptionRepository) IsSubscribed(ctx context.Context, userID, ticketID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id=$1 AND ticket_id=$2)`,
		userID, ticketID).Scan(&exists)
	return exists, err
}

func (r *subscriptionRepository) ListSubscribers(ctx context.Context, ticketID int64) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
        WHERE id IN (SELECT user_id FROM subscriptions WHERE ticket_id=$1)`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *subscriptionRepository) ListUserSubscriptions(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT ticket_id FROM subscriptions WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []int64
	for rows.Next() {
		var ticketID int64
		if err := rows.Scan(&ticketID); err != nil {
			return nil, err
		}
		result = append(result, ticketID)
	}
	return result, rows.Err()
}
