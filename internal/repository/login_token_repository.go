package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zapret-labs/tracker/internal/domain"
)

// ErrLoginTokenNotFound is returned when a handshake token is unknown
// or already expired out of Redis.
var ErrLoginTokenNotFound = fmt.Errorf("login token not found")

// LoginTokenRepository stores deep-link login handshake tokens in
// Redis. TTL expiry replaces any explicit cleanup pass.
type LoginTokenRepository interface {
	Create(ctx context.Context, token string, ttl time.Duration) error
	Get(ctx context.Context, token string) (*domain.LoginToken, error)
	Confirm(ctx context.Context, token string, userID int64) error
	Delete(ctx context.Context, token string) error
}

type loginTokenRepository struct {
	client *redis.Client
}

// NewLoginTokenRepository instantiates repository.
func NewLoginTokenRepository(client *redis.Client) LoginTokenRepository {
	return &loginTokenRepository{client: client}
}

func loginTokenKey(token string) string {
	return "login_token:" + token
}

func (r *loginTokenRepository) Create(ctx context.Context, token string, ttl time.Duration) error {
	record := domain.LoginToken{Token: token, CreatedAt: time.Now().UTC()}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, loginTokenKey(token), payload, ttl).Err()
}

func (r *loginTokenRepository) Get(ctx context.Context, token string) (*domain.LoginToken, error) {
	raw, err := r.client.Get(ctx, loginTokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil, ErrLoginTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	var record domain.LoginToken
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *loginTokenRepository) Confirm(ctx context.Context, token string, userID int64) error {
	record, err := r.Get(ctx, token)
	if err != nil {
		return err
	}
	record.Confirmed = true
	record.UserID = userID
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	// Keep whatever TTL remains so a confirmed token still expires.
	return r.client.Set(ctx, loginTokenKey(token), payload, redis.KeepTTL).Err()
}

func (r *loginTokenRepository) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, loginTokenKey(token)).Err()
}
