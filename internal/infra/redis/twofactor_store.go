package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"athfed/internal/domain/service"
	"athfed/internal/errors"
)

const (
	setupSecretKeyPrefix  = "2fa:setup:"
	pendingLoginKeyPrefix = "2fa:pending:"
)

// TwoFactorStore keeps candidate TOTP secrets and single-use
// pending-login markers in the key-value service.
type TwoFactorStore struct {
	client *redis.Client
}

// NewTwoFactorStore builds the store.
func NewTwoFactorStore(client *redis.Client) service.TwoFactorStore {
	return &TwoFactorStore{client: client}
}

// SaveSetupSecret stashes the candidate secret, superseding any
// previous one for the same user.
func (s *TwoFactorStore) SaveSetupSecret(ctx context.Context, userID, secret string, ttl time.Duration) error {
	if err := s.client.Set(ctx, setupSecretKeyPrefix+userID, secret, ttl).Err(); err != nil {
		return errors.Wrap(err, "save setup secret")
	}

	return nil
}

// TakeSetupSecret atomically returns and removes the candidate secret.
func (s *TwoFactorStore) TakeSetupSecret(ctx context.Context, userID string) (string, error) {
	secret, err := s.client.GetDel(ctx, setupSecretKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "take setup secret")
	}

	return secret, nil
}

// SavePendingLogin marks the pending-2FA token jti redeemable for its
// lifetime.
func (s *TwoFactorStore) SavePendingLogin(ctx context.Context, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, pendingLoginKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return errors.Wrap(err, "save pending login")
	}

	return nil
}

// ConsumePendingLogin redeems the marker. The GETDEL makes concurrent
// redemptions of the same jti resolve to exactly one winner.
func (s *TwoFactorStore) ConsumePendingLogin(ctx context.Context, jti string) (bool, error) {
	_, err := s.client.GetDel(ctx, pendingLoginKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "consume pending login")
	}

	return true, nil
}
