package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VoteRepository encapsulates ticket vote persistence. Toggle keeps
// tickets.votes_count in sync inside the same transaction.
type VoteRepository interface {
	Toggle(ctx context.Context, userID, ticketID int64) (voted bool, total int, err error)
	ListUserVotes(ctx context.Context, userID int64) ([]int64, error)
}

type voteRepository struct {
	pool *pgxpool.Pool
}

// NewVoteRepository instantiates repository.
func NewVoteRepository(pool *pgxpool.Pool) VoteRepository {
	return &voteRepository{pool: pool}
}

func (r *voteRepository) Toggle(ctx context.Context, userID, ticketID int64) (bool, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `DELETE FROM votes WHERE user_id=$1 AND ticket_id=$2`, userID, ticketID)
	if err != nil {
		return false, 0, err
	}
	voted := cmd.RowsAffected() == 0
	if voted {
		if _, err := tx.Exec(ctx,
			`INSERT INTO votes (user_id, ticket_id) VALUES ($1,$2)`, userID, ticketID); err != nil {
			return false, 0, err
		}
	}

	var total int
	if err := tx.QueryRow(ctx, `
        UPDATE tickets SET votes_count = (SELECT COUNT(*) FROM votes WHERE ticket_id=$1)
        WHERE id=$1
        RETURNING votes_count`, ticketID).Scan(&total); err != nil {
		return false, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return voted, total, nil
}

func (r *voteRepository) ListUserVotes(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT ticket_id FROM votes WHERE user_id=$1`, userID)
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
