package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapret-labs/tracker/internal/domain"
)

// TicketFilter captures listing parameters. Private tickets are
// visible to their author and to admins only, which the ViewerID /
// ViewerIsAdmin pair enforces at the query level.
type TicketFilter struct {
	Statuses        []domain.TicketStatus
	Types           []domain.TicketType
	Priorities      []domain.TicketPriority
	TagID           *int64
	AuthorID        *int64
	SearchTerm      *string
	IncludeArchived bool
	ViewerID        int64
	ViewerIsAdmin   bool
	Limit           int
	Offset          int
}

// TicketRecord is a ticket joined with its author row. Masking is the
// service layer's job, so the raw user comes back as-is.
type TicketRecord struct {
	Ticket domain.Ticket
	Author domain.User
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*TicketRecord, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]TicketRecord, error)
	Stats(ctx context.Context) (*domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, type, status, priority, is_private, author_id, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Status,
		ticket.Priority,
		ticket.IsPrivate,
		ticket.AuthorID,
		ticket.AssignedTo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, type=$3, status=$4, priority=$5,
            is_private=$6, assigned_to=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Status,
		ticket.Priority,
		ticket.IsPrivate,
		ticket.AssignedTo,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const ticketSelect = `
    SELECT t.id, t.title, t.description, t.type, t.status, t.priority, t.is_private,
           t.author_id, t.assigned_to, t.votes_count, t.created_at, t.updated_at, t.closed_at,
           ` + userColumnsPrefixed + `
    FROM tickets t
    JOIN users u ON u.id = t.author_id`

const userColumnsPrefixed = `u.id, u.telegram_id, u.chat_id, u.username, u.first_name, u.last_name, u.photo_url,
       u.is_admin, u.privacy_hidden, u.privacy_hide_online, u.privacy_hide_activity,
       u.display_name, u.display_avatar, u.notify_own, u.notify_subscribed, u.created_at, u.last_login`

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*TicketRecord, error) {
	query := ticketSelect + ` WHERE t.id=$1`
	var record TicketRecord
	if err := scanTicketRecord(r.pool.QueryRow(ctx, query, id), &record); err != nil {
		return nil, err
	}
	if err := r.attachTags(ctx, []*TicketRecord{&record}); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]TicketRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if !filter.ViewerIsAdmin {
		args = append(args, filter.ViewerID)
		clauses = append(clauses, fmt.Sprintf("(t.is_private = FALSE OR t.author_id = $%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	} else if !filter.IncludeArchived {
		clauses = append(clauses, "t.status NOT IN ('closed','rejected','duplicate')")
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, tt := range filter.Types {
			args = append(args, tt)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.type IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TagID != nil {
		args = append(args, *filter.TagID)
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM ticket_tags tt WHERE tt.ticket_id = t.id AND tt.tag_id = $%d)", len(args)))
	}
	if filter.AuthorID != nil {
		args = append(args, *filter.AuthorID)
		clauses = append(clauses, fmt.Sprintf("t.author_id = $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.title) LIKE %s OR LOWER(t.description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s
        ORDER BY CASE t.priority
            WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3
        END, t.updated_at DESC
        LIMIT %d OFFSET %d`,
		ticketSelect, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanTicketRecords(rows)
	if err != nil {
		return nil, err
	}
	refs := make([]*TicketRecord, len(records))
	for i := range records {
		refs[i] = &records[i]
	}
	if err := r.attachTags(ctx, refs); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *ticketRepository) attachTags(ctx context.Context, records []*TicketRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]int64, len(records))
	index := make(map[int64]*TicketRecord, len(records))
	for i, record := range records {
		ids[i] = record.Ticket.ID
		index[record.Ticket.ID] = record
	}
	const query = `
        SELECT tt.ticket_id, g.id, g.name, g.color
        FROM ticket_tags tt
        JOIN tags g ON g.id = tt.tag_id
        WHERE tt.ticket_id = ANY($1)
        ORDER BY g.name`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ticketID int64
		var tag domain.Tag
		if err := rows.Scan(&ticketID, &tag.ID, &tag.Name, &tag.Color); err != nil {
			return err
		}
		if record, ok := index[ticketID]; ok {
			record.Ticket.Tags = append(record.Ticket.Tags, tag)
		}
	}
	return rows.Err()
}

func (r *ticketRepository) Stats(ctx context.Context) (*domain.TicketStats, error) {
	stats := &domain.TicketStats{
		ByStatus:   map[domain.TicketStatus]int{},
		ByType:     map[domain.TicketType]int{},
		ByPriority: map[domain.TicketPriority]int{},
	}
	const query = `SELECT status, type, priority, COUNT(*) FROM tickets GROUP BY status, type, priority`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status domain.TicketStatus
		var tt domain.TicketType
		var priority domain.TicketPriority
		var count int
		if err := rows.Scan(&status, &tt, &priority, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByType[tt] += count
		stats.ByPriority[priority] += count
		if !status.Archived() {
			stats.OpenCount += count
		}
	}
	return stats, rows.Err()
}

func scanTicketRecord(row rowScanner, record *TicketRecord) error {
	return row.Scan(
		&record.Ticket.ID,
		&record.Ticket.Title,
		&record.Ticket.Description,
		&record.Ticket.Type,
		&record.Ticket.Status,
		&record.Ticket.Priority,
		&record.Ticket.IsPrivate,
		&record.Ticket.AuthorID,
		&record.Ticket.AssignedTo,
		&record.Ticket.VotesCount,
		&record.Ticket.CreatedAt,
		&record.Ticket.UpdatedAt,
		&record.Ticket.ClosedAt,
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

func scanTicketRecords(rows pgx.Rows) ([]TicketRecord, error) {
	var result []TicketRecord
	for rows.Next() {
		var record TicketRecord
		if err := scanTicketRecord(rows, &record); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
