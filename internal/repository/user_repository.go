package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapret-labs/tracker/internal/domain"
)

const userColumns = `id, telegram_id, chat_id, username, first_name, last_name, photo_url,
       is_admin, privacy_hidden, privacy_hide_online, privacy_hide_activity,
       display_name, display_avatar, notify_own, notify_subscribed, created_at, last_login`

// UserRepository encapsulates user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateChatID(ctx context.Context, userID int64, chatID int64) error
	UpdatePhotoURL(ctx context.Context, userID int64, photoURL *string) error
	TouchLastLogin(ctx context.Context, userID int64) error
	Count(ctx context.Context) (int, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (telegram_id, chat_id, username, first_name, last_name, photo_url, is_admin)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, last_login`
	return r.pool.QueryRow(ctx, query,
		user.TelegramID,
		user.ChatID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PhotoURL,
		user.IsAdmin,
	).Scan(&user.ID, &user.CreatedAt, &user.LastLogin)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET username=$1, first_name=$2, last_name=$3, photo_url=$4,
            privacy_hidden=$5, privacy_hide_online=$6, privacy_hide_activity=$7,
            display_name=$8, display_avatar=$9, notify_own=$10, notify_subscribed=$11
        WHERE id=$12`
	cmd, err := r.pool.Exec(ctx, query,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PhotoURL,
		user.PrivacyHidden,
		user.PrivacyHideOnline,
		user.PrivacyHideActivity,
		user.DisplayName,
		user.DisplayAvatar,
		user.NotifyOwn,
		user.NotifySubscribed,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id=$1`
	return r.fetchSingle(ctx, query, telegramID)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := scanUser(r.pool.QueryRow(ctx, query, arg), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY last_login DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) UpdateChatID(ctx context.Context, userID int64, chatID int64) error {
	const query = `UPDATE users SET chat_id=$1 WHERE id=$2`
	_, err := r.pool.Exec(ctx, query, chatID, userID)
	return err
}

func (r *userRepository) UpdatePhotoURL(ctx context.Context, userID int64, photoURL *string) error {
	const query = `UPDATE users SET photo_url=$1 WHERE id=$2`
	_, err := r.pool.Exec(ctx, query, photoURL, userID)
	return err
}

func (r *userRepository) TouchLastLogin(ctx context.Context, userID int64) error {
	const query = `UPDATE users SET last_login=NOW() WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, user *domain.User) error {
	return row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.ChatID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.PhotoURL,
		&user.IsAdmin,
		&user.PrivacyHidden,
		&user.PrivacyHideOnline,
		&user.PrivacyHideActivity,
		&user.DisplayName,
		&user.DisplayAvatar,
		&user.NotifyOwn,
		&user.NotifySubscribed,
		&user.CreatedAt,
		&user.LastLogin,
	)
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
