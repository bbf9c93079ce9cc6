package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zapret-labs/tracker/internal/domain"
)

func TestSanitizeDisplayName(t *testing.T) {
	t.Parallel()

	t.Run("empty clears the override", func(t *testing.T) {
		t.Parallel()
		name, err := sanitizeDisplayName("   ")
		require.NoError(t, err)
		require.Nil(t, name)
	})

	t.Run("newlines become spaces", func(t *testing.T) {
		t.Parallel()
		name, err := sanitizeDisplayName("Night\nOwl")
		require.NoError(t, err)
		require.Equal(t, "Night Owl", *name)
	})

	t.Run("long names are truncated", func(t *testing.T) {
		t.Parallel()
		name, err := sanitizeDisplayName(strings.Repeat("a", 100))
		require.NoError(t, err)
		require.Len(t, []rune(*name), maxDisplayNameLength)
	})
}

func TestSanitizeDisplayAvatar(t *testing.T) {
	t.Parallel()

	t.Run("empty clears the override", func(t *testing.T) {
		t.Parallel()
		avatar, err := sanitizeDisplayAvatar("")
		require.NoError(t, err)
		require.Nil(t, avatar)
	})

	t.Run("hidden sentinel passes", func(t *testing.T) {
		t.Parallel()
		avatar, err := sanitizeDisplayAvatar(domain.HiddenSentinel)
		require.NoError(t, err)
		require.Equal(t, domain.HiddenSentinel, *avatar)
	})

	t.Run("upload path passes", func(t *testing.T) {
		t.Parallel()
		avatar, err := sanitizeDisplayAvatar("/uploads/mask_1.png")
		require.NoError(t, err)
		require.Equal(t, "/uploads/mask_1.png", *avatar)
	})

	t.Run("rejects off-site and markup-bearing values", func(t *testing.T) {
		t.Parallel()
		for _, bad := range []string{
			"https://evil.example/x.png",
			"/uploads/a b.png",
			`/uploads/"x".png`,
			"/uploads/<img>.png",
			"/uploads/../secret.png",
		} {
			_, err := sanitizeDisplayAvatar(bad)
			require.Error(t, err, bad)
		}
	})
}
