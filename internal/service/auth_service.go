package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/repository"
	"github.com/zapret-labs/tracker/internal/telegram"
	apperrors "github.com/zapret-labs/tracker/pkg/util"
)

// AuthService owns every way into the system: Mini App init data
// verification and the deep-link /start handshake. Both converge on
// findOrCreateUser plus an opaque session.
type AuthService struct {
	users       repository.UserRepository
	sessions    repository.SessionRepository
	loginTokens repository.LoginTokenRepository
	logger      *zap.Logger

	botToken        string
	botUsername     string
	adminTelegramID int64
	loginTokenTTL   time.Duration
}

// NewAuthService constructs the auth layer.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	loginTokens repository.LoginTokenRepository,
	logger *zap.Logger,
	botToken, botUsername string,
	adminTelegramID int64,
	loginTokenTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:           users,
		sessions:        sessions,
		loginTokens:     loginTokens,
		logger:          logger,
		botToken:        botToken,
		botUsername:     botUsername,
		adminTelegramID: adminTelegramID,
		loginTokenTTL:   loginTokenTTL,
	}
}

// WebAppLogin validates Telegram Mini App init data and returns the
// user with a fresh session token.
func (s *AuthService) WebAppLogin(ctx context.Context, initData string) (*domain.User, string, error) {
	webAppUser, err := telegram.VerifyInitData(initData, s.botToken)
	if err != nil {
		return nil, "", apperrors.NewUnauthorized("invalid init data")
	}
	user, err := s.findOrCreateUser(ctx, telegram.User{
		ID:        webAppUser.ID,
		FirstName: webAppUser.FirstName,
		LastName:  webAppUser.LastName,
		Username:  webAppUser.Username,
		PhotoURL:  webAppUser.PhotoURL,
	})
	if err != nil {
		return nil, "", err
	}
	token, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// DevLogin signs in as an arbitrary Telegram identity. It is refused
// outright while a bot token is configured; it exists so local
// development works without a bot at all.
func (s *AuthService) DevLogin(ctx context.Context, telegramID int64, username, firstName string) (*domain.User, string, error) {
	if s.botToken != "" {
		return nil, "", apperrors.NewForbidden("dev login disabled when bot is configured")
	}
	if telegramID == 0 {
		return nil, "", apperrors.NewValidationError("telegram_id is required", nil)
	}
	if firstName == "" {
		firstName = "Dev User"
	}
	user, err := s.findOrCreateUser(ctx, telegram.User{
		ID:        telegramID,
		FirstName: firstName,
		Username:  username,
	})
	if err != nil {
		return nil, "", err
	}
	token, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// RequestLogin starts the deep-link handshake: a short-lived token the
// browser holds while the user confirms in Telegram. Returns the token
// and the t.me link to open.
func (s *AuthService) RequestLogin(ctx context.Context) (string, string, error) {
	token, err := randomToken()
	if err != nil {
		return "", "", err
	}
	if err := s.loginTokens.Create(ctx, token, s.loginTokenTTL); err != nil {
		return "", "", err
	}
	deepLink := fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, token)
	return token, deepLink, nil
}

// CheckLogin polls the handshake token. Once the bot has confirmed it,
// the token is exchanged for a session and deleted so it cannot be
// replayed.
func (s *AuthService) CheckLogin(ctx context.Context, token string) (*domain.User, string, error) {
	record, err := s.loginTokens.Get(ctx, token)
	if err != nil {
		if err == repository.ErrLoginTokenNotFound {
			return nil, "", apperrors.NewUnauthorized("login token expired")
		}
		return nil, "", err
	}
	if !record.Confirmed {
		return nil, "", nil
	}
	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, "", apperrors.MapError(err)
	}
	sessionToken, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	if err := s.loginTokens.Delete(ctx, token); err != nil {
		s.logger.Warn("failed to delete consumed login token", zap.Error(err))
	}
	return user, sessionToken, nil
}

// ConfirmLoginToken is called from the bot's /start handler. It binds
// the pending token to the Telegram account, creating that account
// locally if this is its first contact.
func (s *AuthService) ConfirmLoginToken(ctx context.Context, token string, from telegram.User, chatID int64) error {
	user, err := s.findOrCreateUser(ctx, from)
	if err != nil {
		return err
	}
	if err := s.users.UpdateChatID(ctx, user.ID, chatID); err != nil {
		s.logger.Warn("failed to store chat id", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return s.loginTokens.Confirm(ctx, token, user.ID)
}

// RegisterChat refreshes the stored chat id for a known account. An
// unknown Telegram user writing to the bot is ignored; the account
// appears when they actually log in.
func (s *AuthService) RegisterChat(ctx context.Context, from telegram.User, chatID int64) error {
	user, err := s.users.GetByTelegramID(ctx, from.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return err
	}
	if user.ChatID != nil && *user.ChatID == chatID {
		return nil
	}
	return s.users.UpdateChatID(ctx, user.ID, chatID)
}

// Logout revokes the session.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	if err := s.sessions.Delete(ctx, sessionToken); err != nil && err != pgx.ErrNoRows {
		return err
	}
	return nil
}

func (s *AuthService) createSession(ctx context.Context, userID int64) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	session := &domain.Session{Token: token, UserID: userID}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}
	if err := s.users.TouchLastLogin(ctx, userID); err != nil {
		s.logger.Warn("failed to touch last login", zap.Int64("user_id", userID), zap.Error(err))
	}
	return token, nil
}

// findOrCreateUser resolves a Telegram identity to a local account,
// refreshing mutable profile fields on every sighting.
func (s *AuthService) findOrCreateUser(ctx context.Context, from telegram.User) (*domain.User, error) {
	user, err := s.users.GetByTelegramID(ctx, from.ID)
	if err != nil && err != pgx.ErrNoRows {
		return nil, err
	}

	if err == pgx.ErrNoRows {
		user = &domain.User{
			TelegramID: from.ID,
			FirstName:  firstNameOrDefault(from.FirstName),
			LastName:   optionalString(from.LastName),
			Username:   optionalString(from.Username),
			PhotoURL:   optionalString(from.PhotoURL),
			IsAdmin:    s.adminTelegramID != 0 && from.ID == s.adminTelegramID,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		s.logger.Info("registered new user",
			zap.Int64("user_id", user.ID), zap.Int64("telegram_id", user.TelegramID))
		return user, nil
	}

	// Names and usernames drift on Telegram's side; keep ours current.
	changed := false
	if name := firstNameOrDefault(from.FirstName); user.FirstName != name {
		user.FirstName = name
		changed = true
	}
	if !equalOptional(user.LastName, from.LastName) {
		user.LastName = optionalString(from.LastName)
		changed = true
	}
	if !equalOptional(user.Username, from.Username) {
		user.Username = optionalString(from.Username)
		changed = true
	}
	if changed {
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.Warn("failed to refresh user profile fields",
				zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func firstNameOrDefault(name string) string {
	if name == "" {
		return "User"
	}
	return name
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalOptional(a *string, b string) bool {
	if a == nil {
		return b == ""
	}
	return *a == b
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
