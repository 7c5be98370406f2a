package redis

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"athfed/config"
	"athfed/internal/domain/entity"
	"athfed/internal/domain/service"
	"athfed/internal/errors"
)

const challengeKeyPrefix = "challenge"

// challengeRecord is the stored value: the code plus how many wrong
// candidates have been checked against it.
type challengeRecord struct {
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
}

// ChallengeStore keeps email challenge codes in the key-value service,
// one live code per {purpose, email}, with a hard attempt cap.
type ChallengeStore struct {
	client      *redis.Client
	verifyTTL   time.Duration
	resetTTL    time.Duration
	maxAttempts int
}

// NewChallengeStore builds the store from configuration.
func NewChallengeStore(client *redis.Client, cfg *config.Config) service.ChallengeStore {
	return &ChallengeStore{
		client:      client,
		verifyTTL:   cfg.Challenge.VerifyTTL,
		resetTTL:    cfg.Challenge.ResetTTL,
		maxAttempts: cfg.Challenge.MaxAttempts,
	}
}

// Issue stores a fresh code under the {purpose, email} key, replacing
// any previous one and resetting the attempt counter.
func (s *ChallengeStore) Issue(ctx context.Context, purpose service.ChallengePurpose, email string) (string, time.Duration, error) {
	code, err := randomDigits(6)
	if err != nil {
		return "", 0, err
	}

	payload, err := json.Marshal(challengeRecord{Code: code})
	if err != nil {
		return "", 0, errors.Wrap(err, "marshal challenge record")
	}

	ttl := s.ttlFor(purpose)
	if err := s.client.Set(ctx, s.key(purpose, email), payload, ttl).Err(); err != nil {
		return "", 0, errors.Wrap(service.ErrChallengeUnavailable, err.Error())
	}

	return code, ttl, nil
}

// Validate checks the candidate without removing the code on success.
func (s *ChallengeStore) Validate(ctx context.Context, purpose service.ChallengePurpose, email, code string) error {
	return s.check(ctx, purpose, email, code, false)
}

// Consume checks the candidate and removes the code on success.
func (s *ChallengeStore) Consume(ctx context.Context, purpose service.ChallengePurpose, email, code string) error {
	return s.check(ctx, purpose, email, code, true)
}

// Revoke destroys any live code for the key.
func (s *ChallengeStore) Revoke(ctx context.Context, purpose service.ChallengePurpose, email string) error {
	if err := s.client.Del(ctx, s.key(purpose, email)).Err(); err != nil {
		return errors.Wrap(service.ErrChallengeUnavailable, err.Error())
	}

	return nil
}

// Status reports existence and remaining TTL without spending attempts.
func (s *ChallengeStore) Status(ctx context.Context, purpose service.ChallengePurpose, email string) (*service.ChallengeStatus, error) {
	ttl, err := s.client.TTL(ctx, s.key(purpose, email)).Result()
	if err != nil {
		return nil, errors.Wrap(service.ErrChallengeUnavailable, err.Error())
	}

	if ttl < 0 {
		return &service.ChallengeStatus{}, nil
	}

	return &service.ChallengeStatus{Exists: true, RemainingTTL: ttl}, nil
}

func (s *ChallengeStore) check(ctx context.Context, purpose service.ChallengePurpose, email, code string, destroy bool) error {
	key := s.key(purpose, email)

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return service.ErrChallengeExpired
	}
	if err != nil {
		return errors.Wrap(service.ErrChallengeUnavailable, err.Error())
	}

	var record challengeRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return errors.Wrap(service.ErrChallengeUnavailable, err.Error())
	}

	// Once the cap is reached the code is destroyed without comparing,
	// so an attacker gets exactly maxAttempts comparisons per code.
	if record.Attempts >= s.maxAttempts {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return errors.Wrap(service.ErrChallengeUnavailable, err.Error())
		}

		return service.ErrChallengeLockedOut
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		record.Attempts++
		payload, marshalErr := json.Marshal(record)
		if marshalErr != nil {
			return errors.Wrap(service.ErrChallengeUnavailable, marshalErr.Error())
		}
		if err := s.client.Set(ctx, key, payload, redis.KeepTTL).Err(); err != nil {
			return errors.Wrap(service.ErrChallengeUnavailable, err.Error())
		}

		return service.ErrChallengeInvalid
	}

	if destroy {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return errors.Wrap(service.ErrChallengeUnavailable, err.Error())
		}
	}

	return nil
}

func (s *ChallengeStore) ttlFor(purpose service.ChallengePurpose) time.Duration {
	if purpose == service.PurposePasswordReset {
		return s.resetTTL
	}

	return s.verifyTTL
}

func (s *ChallengeStore) key(purpose service.ChallengePurpose, email string) string {
	return fmt.Sprintf("%s:%s:%s", challengeKeyPrefix, purpose, entity.NormalizeEmail(email))
}

// randomDigits draws a zero-padded numeric code of the given length.
func randomDigits(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", errors.Wrap(err, "generate challenge code")
	}

	return fmt.Sprintf("%0*d", length, n), nil
}
