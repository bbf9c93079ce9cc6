package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zapret-labs/tracker/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestMaskIdentity(t *testing.T) {
	t.Parallel()

	baseUser := func() *domain.User {
		return &domain.User{
			ID:        7,
			FirstName: "Grace",
			LastName:  strPtr("Hopper"),
			Username:  strPtr("grace"),
			PhotoURL:  strPtr("/uploads/avatar_7.jpg"),
		}
	}

	t.Run("unmasked user passes through", func(t *testing.T) {
		t.Parallel()
		masked := MaskIdentity(baseUser(), false)
		require.Equal(t, "Grace Hopper", masked.Name)
		require.Equal(t, "grace", masked.Username)
		require.Equal(t, "/uploads/avatar_7.jpg", masked.PhotoURL)
		require.False(t, masked.IsMasked)
		require.Nil(t, masked.RealName)
	})

	t.Run("display name hides username", func(t *testing.T) {
		t.Parallel()
		user := baseUser()
		user.DisplayName = strPtr("Night Owl")
		masked := MaskIdentity(user, false)
		require.Equal(t, "Night Owl", masked.Name)
		require.Empty(t, masked.Username)
		require.True(t, masked.IsMasked)
	})

	t.Run("hidden avatar sentinel clears photo", func(t *testing.T) {
		t.Parallel()
		user := baseUser()
		user.DisplayAvatar = strPtr(domain.HiddenSentinel)
		masked := MaskIdentity(user, false)
		require.Empty(t, masked.PhotoURL)
		require.True(t, masked.IsMasked)
	})

	t.Run("custom avatar replaces photo", func(t *testing.T) {
		t.Parallel()
		user := baseUser()
		user.DisplayAvatar = strPtr("/uploads/alias.png")
		masked := MaskIdentity(user, false)
		require.Equal(t, "/uploads/alias.png", masked.PhotoURL)
	})

	t.Run("privacy hidden collapses to anonymous", func(t *testing.T) {
		t.Parallel()
		user := baseUser()
		user.PrivacyHidden = true
		user.DisplayName = strPtr("Night Owl")
		masked := MaskIdentity(user, false)
		require.Equal(t, hiddenUserName, masked.Name)
		require.Empty(t, masked.Username)
		require.Empty(t, masked.PhotoURL)
		require.True(t, masked.IsHidden)
	})

	t.Run("admin viewer gets real identity side channel", func(t *testing.T) {
		t.Parallel()
		user := baseUser()
		user.PrivacyHidden = true
		masked := MaskIdentity(user, true)
		require.Equal(t, hiddenUserName, masked.Name)
		require.NotNil(t, masked.RealName)
		require.Equal(t, "Grace Hopper", *masked.RealName)
		require.NotNil(t, masked.RealUsername)
		require.Equal(t, "grace", *masked.RealUsername)
	})

	t.Run("admin viewer gets no side channel for unmasked users", func(t *testing.T) {
		t.Parallel()
		masked := MaskIdentity(baseUser(), true)
		require.Nil(t, masked.RealName)
		require.Nil(t, masked.RealUsername)
		require.Nil(t, masked.RealPhotoURL)
	})
}
