package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapret-labs/tracker/internal/domain"
)

// ReactionRepository encapsulates message reaction persistence.
type ReactionRepository interface {
	Toggle(ctx context.Context, messageID, userID int64, emoji string) (added bool, err error)
	ListByMessages(ctx context.Context, messageIDs []int64) (map[int64][]domain.Reaction, error)
}

type reactionRepository struct {
	pool *pgxpool.Pool
}

// NewReactionRepository instantiates repository.
func NewReactionRepository(pool *pgxpool.Pool) ReactionRepository {
	return &reactionRepository{pool: pool}
}

func (r *reactionRepository) Toggle(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1,$2,$3)`,
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *reactionRepository) ListByMessages(ctx context.Context, messageIDs []int64) (map[int64][]domain.Reaction, error) {
	result := make(map[int64][]domain.Reaction)
	if len(messageIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT message_id, emoji, ARRAY_AGG(user_id ORDER BY created_at)
        FROM reactions
        WHERE message_id = ANY($1)
        GROUP BY message_id, emoji
        ORDER BY message_id, emoji`
	rows, err := r.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var messageID int64
		var reaction domain.Reaction
		if err := rows.Scan(&messageID, &reaction.Emoji, &reaction.UserIDs); err != nil {
			return nil, err
		}
		reaction.Count = len(reaction.UserIDs)
		result[messageID] = append(result[messageID], reaction)
	}
	return result, rows.Err()
}
