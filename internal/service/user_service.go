package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/domain"
	"github.com/zapret-labs/tracker/internal/repository"
	apperrors "github.com/zapret-labs/tracker/pkg/util"
)

const maxDisplayNameLength = 40

// SettingsInput is a partial settings update; nil fields stay as they
// are.
type SettingsInput struct {
	PrivacyHidden       *bool
	PrivacyHideOnline   *bool
	PrivacyHideActivity *bool
	DisplayName         *string
	DisplayAvatar       *string
	NotifyOwn           *bool
	NotifySubscribed    *bool
}

// DirectoryEntry is one row of the users page.
type DirectoryEntry struct {
	domain.MaskedIdentity
	IsOnline bool `json:"is_online"`
}

// UserService covers the user directory and per-user settings.
type UserService struct {
	users    repository.UserRepository
	presence *PresenceService
	logger   *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, presence *PresenceService, logger *zap.Logger) *UserService {
	return &UserService{users: users, presence: presence, logger: logger}
}

// Directory lists all users masked for the viewer, with online dots
// that honor the privacy flags. Fully hidden users still appear here,
// but under the hidden placeholder and never with an online dot.
func (s *UserService) Directory(ctx context.Context, viewer *domain.User) ([]DirectoryEntry, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	online := s.presence.OnlineIDs(viewer.IsAdmin)
	result := make([]DirectoryEntry, 0, len(users))
	for i := range users {
		user := &users[i]
		entry := DirectoryEntry{
			MaskedIdentity: MaskIdentity(user, viewer.IsAdmin),
			IsOnline:       online[user.ID],
		}
		result = append(result, entry)
	}
	return result, nil
}

// UpdateSettings validates and applies the caller's privacy,
// masking and notification preferences.
func (s *UserService) UpdateSettings(ctx context.Context, actor *domain.User, input SettingsInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if input.PrivacyHidden != nil {
		user.PrivacyHidden = *input.PrivacyHidden
	}
	if input.PrivacyHideOnline != nil {
		user.PrivacyHideOnline = *input.PrivacyHideOnline
	}
	if input.PrivacyHideActivity != nil {
		user.PrivacyHideActivity = *input.PrivacyHideActivity
	}
	if input.NotifyOwn != nil {
		user.NotifyOwn = *input.NotifyOwn
	}
	if input.NotifySubscribed != nil {
		user.NotifySubscribed = *input.NotifySubscribed
	}
	if input.DisplayName != nil {
		name, err := sanitizeDisplayName(*input.DisplayName)
		if err != nil {
			return nil, err
		}
		user.DisplayName = name
	}
	if input.DisplayAvatar != nil {
		avatar, err := sanitizeDisplayAvatar(*input.DisplayAvatar)
		if err != nil {
			return nil, err
		}
		user.DisplayAvatar = avatar
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// sanitizeDisplayName strips newlines, trims and bounds the alias.
// Empty clears the override.
func sanitizeDisplayName(raw string) (*string, error) {
	name := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(raw)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	runes := []rune(name)
	if len(runes) > maxDisplayNameLength {
		name = strings.TrimSpace(string(runes[:maxDisplayNameLength]))
	}
	return &name, nil
}

// sanitizeDisplayAvatar accepts empty (clear), the hidden sentinel, or
// an uploaded-file path. Anything that could smuggle markup or point
// off-site is rejected.
func sanitizeDisplayAvatar(raw string) (*string, error) {
	avatar := strings.TrimSpace(raw)
	if avatar == "" {
		return nil, nil
	}
	if avatar == domain.HiddenSentinel {
		return &avatar, nil
	}
	if !strings.HasPrefix(avatar, "/uploads/") ||
		strings.ContainsAny(avatar, "\"'<> \t\n") ||
		strings.Contains(avatar, "..") {
		return nil, apperrors.NewValidationError("invalid avatar path", nil)
	}
	return &avatar, nil
}
