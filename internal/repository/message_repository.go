package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapret-labs/tracker/internal/domain"
)

// MessageRecord is a message joined with its author row.
type MessageRecord struct {
	Message domain.Message
	Author  domain.User
}

// MessageRepository encapsulates ticket message persistence.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id int64) (*MessageRecord, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]MessageRecord, error)
	ListSince(ctx context.Context, ticketID int64, sinceID int64) ([]MessageRecord, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	Delete(ctx context.Context, id int64) error
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	const query = `
        INSERT INTO messages (ticket_id, author_id, content, is_system)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		message.TicketID,
		message.AuthorID,
		message.Content,
		message.IsSystem,
	).Scan(&message.ID, &message.CreatedAt)
}

const messageSelect = `
    SELECT m.id, m.ticket_id, m.author_id, m.content, m.is_system, m.created_at,
           ` + userColumnsPrefixed + `
    FROM messages m
    JOIN users u ON u.id = m.author_id`

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*MessageRecord, error) {
	query := messageSelect + ` WHERE m.id=$1`
	var record MessageRecord
	if err := scanMessageRecord(r.pool.QueryRow(ctx, query, id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]MessageRecord, error) {
	query := messageSelect + ` WHERE m.ticket_id=$1 ORDER BY m.created_at, m.id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRecords(rows)
}

func (r *messageRepository) ListSince(ctx context.Context, ticketID int64, sinceID int64) ([]MessageRecord, error) {
	query := messageSelect + ` WHERE m.ticket_id=$1 AND m.id > $2 ORDER BY m.created_at, m.id`
	rows, err := r.pool.Query(ctx, query, ticketID, sinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRecords(rows)
}

func (r *messageRepository) UpdateContent(ctx context.Context, id int64, content string) error {
	const query = `UPDATE messages SET content=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, content, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *messageRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanMessageRecord(row rowScanner, record *MessageRecord) error {
	return row.Scan(
		&record.Message.ID,
		&record.Message.TicketID,
		&record.Message.AuthorID,
		&record.Message.Content,
		&record.Message.IsSystem,
		&record.Message.CreatedAt,
		&record.Author.ID,
		&record.Author.TelegramID,
		&record.Author.ChatID,
		&record.Author.Username,
		&record.Author.FirstName,
		&record.Author.LastName,
		&record.Author.PhotoURL,
		&record.Author.IsAdmin,
		&record.Author.PrivacyHidden,
		&record.Author.PrivacyHideOnline,
		&record.Author.PrivacyHideActivity,
		&record.Author.DisplayName,
		&record.Author.DisplayAvatar,
		&record.Author.NotifyOwn,
		&record.Author.NotifySubscribed,
		&record.Author.CreatedAt,
		&record.Author.LastLogin,
	)
}

func scanMessageRecords(rows pgx.Rows) ([]MessageRecord, error) {
	var result []MessageRecord
	for rows.Next() {
		var record MessageRecord
		if err := scanMessageRecord(rows, &record); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
