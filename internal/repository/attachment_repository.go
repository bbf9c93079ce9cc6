package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapret-labs/tracker/internal/domain"
)

// AttachmentRepository encapsulates file attachment metadata.
type AttachmentRepository interface {
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error)
	ListByMessages(ctx context.Context, messageIDs []int64) (map[int64][]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository instantiates repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

const attachmentColumns = `id, ticket_id, message_id, filename, original_name, mime_type, size_bytes, created_at`

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE ticket_id=$1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttachments(rows)
}

func (r *attachmentRepository) ListByMessages(ctx context.Context, messageIDs []int64) (map[int64][]domain.Attachment, error) {
	result := make(map[int64][]domain.Attachment)
	if len(messageIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE message_id = ANY($1) ORDER BY id`
	rows, err := r.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	attachments, err := scanAttachments(rows)
	if err != nil {
		return nil, err
	}
	for _, attachment := range attachments {
		if attachment.MessageID != nil {
			result[*attachment.MessageID] = append(result[*attachment.MessageID], attachment)
		}
	}
	return result, nil
}

func scanAttachments(rows pgx.Rows) ([]domain.Attachment, error) {
	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.MessageID,
			&attachment.Filename,
			&attachment.OriginalName,
			&attachment.MimeType,
			&attachment.SizeBytes,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
