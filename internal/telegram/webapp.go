package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// WebAppUser is the user object embedded in Mini App init data.
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// MaxInitDataAge bounds how old accepted init data may be. Telegram
// includes auth_date; anything older is treated as a replay.
const MaxInitDataAge = 24 * time.Hour

// VerifyInitData validates a Mini App initData string against the bot
// token and returns the embedded user. The check is the documented
// two-step HMAC: secret = HMAC_SHA256("WebAppData", botToken), then
// HMAC_SHA256(secret, dataCheckString) must equal the hash field.
func VerifyInitData(initData, botToken string) (*WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("parse init data: %w", err)
	}
	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, fmt.Errorf("init data has no hash")
	}

	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(wantHash), []byte(gotHash)) {
		return nil, fmt.Errorf("init data hash mismatch")
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		var unix int64
		if _, err := fmt.Sscanf(authDate, "%d", &unix); err == nil {
			if time.Since(time.Unix(unix, 0)) > MaxInitDataAge {
				return nil, fmt.Errorf("init data expired")
			}
		}
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, fmt.Errorf("init data has no user")
	}
	var user WebAppUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, fmt.Errorf("parse init data user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("init data user has no id")
	}
	return &user, nil
}
