package service

import (
	"context"
	"time"
)

// RateBudget is a fixed-window budget for one endpoint.
type RateBudget struct {
	Max    int
	Window time.Duration
}

// RateDecision is the outcome of a budget check.
type RateDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter enforces per-key fixed-window budgets. Keys are client
// network addresses for unauthenticated endpoints and identity ids for
// authenticated ones. A transport fault fails open at the middleware's
// discretion.
type RateLimiter interface {
	Allow(ctx context.Context, bucket, key string, budget RateBudget) (*RateDecision, error)
}
