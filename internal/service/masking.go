package service

import (
	"github.com/zapret-labs/tracker/internal/domain"
)

const hiddenUserName = "Hidden user"

// MaskIdentity produces the public face of a user. Users who set a
// display name or avatar appear under that alias; fully hidden users
// collapse to a placeholder with no username or photo.
// Admin viewers additionally get the real identity in the Real*
// side-channel fields. Everyone else, the user themselves included,
// sees only the masked view, so no endpoint can leak the mapping.
func MaskIdentity(user *domain.User, viewerIsAdmin bool) domain.MaskedIdentity {
	realName := user.FullName()
	realUsername := ""
	if user.Username != nil {
		realUsername = *user.Username
	}
	realPhoto := ""
	if user.PhotoURL != nil {
		realPhoto = *user.PhotoURL
	}

	masked := domain.MaskedIdentity{
		ID:       user.ID,
		Name:     realName,
		Username: realUsername,
		PhotoURL: realPhoto,
		IsAdmin:  user.IsAdmin,
	}

	if user.DisplayName != nil && *user.DisplayName != "" {
		masked.Name = *user.DisplayName
		masked.Username = ""
		masked.IsMasked = true
	}
	if user.DisplayAvatar != nil && *user.DisplayAvatar != "" {
		if *user.DisplayAvatar == domain.HiddenSentinel {
			masked.PhotoURL = ""
		} else {
			masked.PhotoURL = *user.DisplayAvatar
		}
		masked.IsMasked = true
	}
	if user.PrivacyHidden {
		masked.Name = hiddenUserName
		masked.Username = ""
		masked.PhotoURL = ""
		masked.IsHidden = true
		masked.IsMasked = true
	}

	if viewerIsAdmin && masked.IsMasked {
		masked.RealName = &realName
		if realUsername != "" {
			masked.RealUsername = &realUsername
		}
		if realPhoto != "" {
			masked.RealPhotoURL = &realPhoto
		}
	}
	return masked
}
