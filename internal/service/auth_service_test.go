package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/repository"
	"github.com/zapret-labs/tracker/internal/telegram"
)

type memUserRepo struct {
	repository.UserRepository
	nextID int64
	users  map[int64]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: map[int64]*domain.User{}}
}

func (m *memUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = m.nextID
	m.nextID++
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *memUserRepo) GetByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	for _, user := range m.users {
		if user.TelegramID == telegramID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUserRepo) UpdateChatID(_ context.Context, userID, chatID int64) error {
	user, ok := m.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ChatID = &chatID
	return nil
}

func (m *memUserRepo) TouchLastLogin(context.Context, int64) error { return nil }

type memSessionRepo struct {
	repository.SessionRepository
	sessions map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*domain.Session{}}
}

func (m *memSessionRepo) Create(_ context.Context, session *domain.Session) error {
	copied := *session
	m.sessions[session.Token] = &copied
	return nil
}

func (m *memSessionRepo) Delete(_ context.Context, token string) error {
	if _, ok := m.sessions[token]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.sessions, token)
	return nil
}

type memLoginTokenRepo struct {
	tokens map[string]*domain.LoginToken
}

func newMemLoginTokenRepo() *memLoginTokenRepo {
	return &memLoginTokenRepo{tokens: map[string]*domain.LoginToken{}}
}

func (m *memLoginTokenRepo) Create(_ context.Context, token string, _ time.Duration) error {
	m.tokens[token] = &domain.LoginToken{Token: token, CreatedAt: time.Now()}
	return nil
}

func (m *memLoginTokenRepo) Get(_ context.Context, token string) (*domain.LoginToken, error) {
	record, ok := m.tokens[token]
	if !ok {
		return nil, repository.ErrLoginTokenNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *memLoginTokenRepo) Confirm(_ context.Context, token string, userID int64) error {
	record, ok := m.tokens[token]
	if !ok {
		return repository.ErrLoginTokenNotFound
	}
	record.Confirmed = true
	record.UserID = userID
	return nil
}

func (m *memLoginTokenRepo) Delete(_ context.Context, token string) error {
	delete(m.tokens, token)
	return nil
}

type authServiceFixture struct {
	svc      *AuthService
	users    *memUserRepo
	sessions *memSessionRepo
	tokens   *memLoginTokenRepo
}

func newAuthServiceFixture(t *testing.T, botToken string, adminTelegramID int64) *authServiceFixture {
	t.Helper()
	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	tokens := newMemLoginTokenRepo()
	svc := NewAuthService(users, sessions, tokens, zap.NewNop(),
		botToken, "tracker_bot", adminTelegramID, 10*time.Minute)
	return &authServiceFixture{svc: svc, users: users, sessions: sessions, tokens: tokens}
}

func TestDeepLinkHandshake(t *testing.T) {
	t.Parallel()
	fx := newAuthServiceFixture(t, "123:secret", 0)
	ctx := context.Background()

	token, link, err := fx.svc.RequestLogin(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "https://t.me/tracker_bot?start="))
	require.Contains(t, link, token)

	// Nothing confirmed yet: the poll says keep waiting.
	user, sessionToken, err := fx.svc.CheckLogin(ctx, token)
	require.NoError(t, err)
	require.Nil(t, user)
	require.Empty(t, sessionToken)

	err = fx.svc.ConfirmLoginToken(ctx, token, telegram.User{ID: 777, FirstName: "Ann", Username: "ann"}, 555)
	require.NoError(t, err)

	user, sessionToken, err = fx.svc.CheckLogin(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, int64(777), user.TelegramID)
	require.NotNil(t, user.ChatID)
	require.Equal(t, int64(555), *user.ChatID)
	require.NotEmpty(t, sessionToken)
	require.Contains(t, fx.sessions.sessions, sessionToken)

	// The token is single-use.
	_, _, err = fx.svc.CheckLogin(ctx, token)
	require.Error(t, err)
}

func TestCheckLoginUnknownToken(t *testing.T) {
	t.Parallel()
	fx := newAuthServiceFixture(t, "123:secret", 0)

	_, _, err := fx.svc.CheckLogin(context.Background(), "never-issued")
	require.Error(t, err)
}

func TestConfirmAssignsAdmin(t *testing.T) {
	t.Parallel()
	fx := newAuthServiceFixture(t, "123:secret", 777)
	ctx := context.Background()

	token, _, err := fx.svc.RequestLogin(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.svc.ConfirmLoginToken(ctx, token, telegram.User{ID: 777, FirstName: "Root"}, 1))

	user, _, err := fx.svc.CheckLogin(ctx, token)
	require.NoError(t, err)
	require.True(t, user.IsAdmin)
}

func TestConfirmRefreshesProfileFields(t *testing.T) {
	t.Parallel()
	fx := newAuthServiceFixture(t, "123:secret", 0)
	ctx := context.Background()

	first, _, err := fx.svc.RequestLogin(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.svc.ConfirmLoginToken(ctx, first, telegram.User{ID: 777, FirstName: "Ann", Username: "ann"}, 1))
	user, _, err := fx.svc.CheckLogin(ctx, first)
	require.NoError(t, err)

	// Same account comes back with a renamed Telegram profile.
	second, _, err := fx.svc.RequestLogin(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.svc.ConfirmLoginToken(ctx, second, telegram.User{ID: 777, FirstName: "Anna", Username: "anna"}, 1))
	updated, _, err := fx.svc.CheckLogin(ctx, second)
	require.NoError(t, err)

	require.Equal(t, user.ID, updated.ID)
	require.Equal(t, "Anna", updated.FirstName)
	require.Equal(t, "anna", *updated.Username)
}

func TestDevLogin(t *testing.T) {
	t.Parallel()

	t.Run("works without a bot token", func(t *testing.T) {
		t.Parallel()
		fx := newAuthServiceFixture(t, "", 0)
		user, token, err := fx.svc.DevLogin(context.Background(), 42, "dev", "")
		require.NoError(t, err)
		require.Equal(t, int64(42), user.TelegramID)
		require.Equal(t, "Dev User", user.FirstName)
		require.NotEmpty(t, token)
	})

	t.Run("refused while the bot is configured", func(t *testing.T) {
		t.Parallel()
		fx := newAuthServiceFixture(t, "123:secret", 0)
		_, _, err := fx.svc.DevLogin(context.Background(), 42, "dev", "")
		require.Error(t, err)
	})
}

func TestLogoutIsIdempotent(t *testing.T) {
	t.Parallel()
	fx := newAuthServiceFixture(t, "", 0)
	ctx := context.Background()

	_, token, err := fx.svc.DevLogin(ctx, 42, "dev", "Dev")
	require.NoError(t, err)
	require.NoError(t, fx.svc.Logout(ctx, token))
	require.NoError(t, fx.svc.Logout(ctx, token))
}
