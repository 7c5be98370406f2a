package middleware

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	deliverycontext "athfed/internal/delivery/context"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/domain/service"
)

// Endpoint budgets. Unauthenticated endpoints are keyed by client
// network address, authenticated ones by identity id.
var (
	LoginBudget         = service.RateBudget{Max: 10, Window: 5 * time.Minute}
	RegisterBudget      = service.RateBudget{Max: 5, Window: time.Hour}
	ResetRequestBudget  = service.RateBudget{Max: 3, Window: time.Hour}
	ResetValidateBudget = service.RateBudget{Max: 10, Window: time.Hour}
	TwoFactorBudget     = service.RateBudget{Max: 10, Window: 5 * time.Minute}
	DefaultBudget       = service.RateBudget{Max: 100, Window: time.Minute}
)

// RateLimitMiddleware enforces per-endpoint request budgets.
type RateLimitMiddleware struct {
	limiter service.RateLimiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware is the constructor for RateLimitMiddleware.
func NewRateLimitMiddleware(limiter service.RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, logger: logger}
}

// LimitByIP budgets a route by the client network address.
func (m *RateLimitMiddleware) LimitByIP(bucket string, budget service.RateBudget) echo.MiddlewareFunc {
	return m.limit(bucket, budget, func(c echo.Context) string {
		return c.RealIP()
	})
}

// LimitByUser budgets a route by the authenticated identity. It must
// run after Authenticate; requests without claims fall back to the
// client address.
func (m *RateLimitMiddleware) LimitByUser(bucket string, budget service.RateBudget) echo.MiddlewareFunc {
	return m.limit(bucket, budget, func(c echo.Context) string {
		if claims := deliverycontext.GetClaims(c); claims != nil {
			return claims.UserID.String()
		}

		return c.RealIP()
	})
}

func (m *RateLimitMiddleware) limit(bucket string, budget service.RateBudget, keyOf func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision, err := m.limiter.Allow(c.Request().Context(), bucket, keyOf(c), budget)
			if err != nil {
				// A counter outage must not lock everyone out.
				m.logger.Warn("Rate limiter unavailable, failing open",
					slog.String("bucket", bucket),
					slog.Any("error", err),
				)

				return next(c)
			}

			if !decision.Allowed {
				seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))

				return domainerrors.ErrRateLimited
			}

			return next(c)
		}
	}
}
