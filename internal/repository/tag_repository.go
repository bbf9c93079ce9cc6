package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapret-labs/tracker/internal/domain"
)

// TagRepository encapsulates tag persistence.
type TagRepository interface {
	List(ctx context.Context) ([]domain.Tag, error)
	Create(ctx context.Context, tag *domain.Tag) error
	Delete(ctx context.Context, id int64) error
	SetTicketTags(ctx context.Context, ticketID int64, tagIDs []int64) error
}

type tagRepository struct {
	pool *pgxpool.Pool
}

// NewTagRepository instantiates repository.
func NewTagRepository(pool *pgxpool.Pool) TagRepository {
	return &tagRepository{pool: pool}
}

func (r *tagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, color FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

func (r *tagRepository) Create(ctx context.Context, tag *domain.Tag) error {
	const query = `INSERT INTO tags (name, color) VALUES ($1,$2) RETURNING id`
	return r.pool.QueryRow(ctx, query, tag.Name, tag.Color).Scan(&tag.ID)
}

func (r *tagRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetTicketTags replaces a ticket's tag set in one transaction.
func (r *tagRepository) SetTicketTags(ctx context.Context, ticketID int64, tagIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ticket_tags WHERE ticket_id=$1`, ticketID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ticket_tags (ticket_id, tag_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			ticketID, tagID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
