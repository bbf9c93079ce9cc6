package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testBotToken = "12345:test-token"

func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()
	pairs := make([]string, 0, len(fields))
	for key, value := range fields {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	query := url.Values{}
	for key, value := range fields {
		query.Set(key, value)
	}
	query.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return query.Encode()
}

func TestVerifyInitData(t *testing.T) {
	t.Parallel()

	validFields := func() map[string]string {
		return map[string]string{
			"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
			"query_id":  "AAE1",
			"user":      `{"id":777,"first_name":"Ada","username":"ada"}`,
		}
	}

	t.Run("accepts validly signed data", func(t *testing.T) {
		t.Parallel()
		initData := signInitData(t, testBotToken, validFields())
		user, err := VerifyInitData(initData, testBotToken)
		require.NoError(t, err)
		require.Equal(t, int64(777), user.ID)
		require.Equal(t, "Ada", user.FirstName)
		require.Equal(t, "ada", user.Username)
	})

	t.Run("rejects wrong bot token", func(t *testing.T) {
		t.Parallel()
		initData := signInitData(t, "999:other-token", validFields())
		_, err := VerifyInitData(initData, testBotToken)
		require.Error(t, err)
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		t.Parallel()
		initData := signInitData(t, testBotToken, validFields())
		tampered := strings.Replace(initData, "Ada", "Eve", 1)
		_, err := VerifyInitData(tampered, testBotToken)
		require.Error(t, err)
	})

	t.Run("rejects missing hash", func(t *testing.T) {
		t.Parallel()
		_, err := VerifyInitData("user=%7B%22id%22%3A1%7D", testBotToken)
		require.Error(t, err)
	})

	t.Run("rejects stale auth_date", func(t *testing.T) {
		t.Parallel()
		fields := validFields()
		fields["auth_date"] = fmt.Sprintf("%d", time.Now().Add(-48*time.Hour).Unix())
		initData := signInitData(t, testBotToken, fields)
		_, err := VerifyInitData(initData, testBotToken)
		require.Error(t, err)
	})

	t.Run("rejects missing user", func(t *testing.T) {
		t.Parallel()
		fields := validFields()
		delete(fields, "user")
		initData := signInitData(t, testBotToken, fields)
		_, err := VerifyInitData(initData, testBotToken)
		require.Error(t, err)
	})
}
