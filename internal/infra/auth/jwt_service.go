package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"athfed/config"
	"athfed/internal/domain/entity"
	"athfed/internal/domain/service"
	"athfed/internal/errors"
)

// jwtClaims is the wire claim set. Role and token type ride alongside
// the registered claims so middleware can authorize without a lookup.
type jwtClaims struct {
	Role string `json:"role"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// JWTService mints and verifies HMAC-signed tokens. All token types
// share one signing key; the type claim keeps them from standing in for
// one another.
type JWTService struct {
	secret []byte
	method jwt.SigningMethod
	issuer string
	leeway time.Duration
	ttls   map[service.TokenType]time.Duration
	clock  service.Clock
}

// NewJWTService builds a token service from the auth configuration.
func NewJWTService(cfg *config.Config, clock service.Clock) (service.TokenService, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwtSecret is required")
	}

	method := jwt.GetSigningMethod(cfg.Auth.JWTAlgorithm)
	if method == nil {
		return nil, errors.Errorf("unsupported signing algorithm: %s", cfg.Auth.JWTAlgorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("signing algorithm %s is not HMAC-based", cfg.Auth.JWTAlgorithm)
	}

	return &JWTService{
		secret: []byte(cfg.Auth.JWTSecret),
		method: method,
		issuer: cfg.Auth.Issuer,
		leeway: cfg.Auth.Leeway,
		ttls: map[service.TokenType]time.Duration{
			service.TokenAccess:             cfg.Auth.AccessTTL,
			service.TokenRefresh:            cfg.Auth.RefreshTTL,
			service.TokenPendingTwoFactor:   cfg.Auth.PendingTTL,
			service.TokenResetAuthorization: cfg.Auth.ResetAuthTTL,
		},
		clock: clock,
	}, nil
}

// Generate mints a signed token of the given type and returns its jti.
func (s *JWTService) Generate(user *entity.User, tokenType service.TokenType) (string, uuid.UUID, error) {
	ttl, ok := s.ttls[tokenType]
	if !ok {
		return "", uuid.Nil, errors.Errorf("unknown token type: %s", tokenType)
	}

	now := s.clock.Now()
	jti := uuid.New()

	claims := jwtClaims{
		Role: user.Role.String(),
		Type: string(tokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.PublicID.String(),
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", uuid.Nil, errors.Wrap(err, "sign token")
	}

	return signed, jti, nil
}

// Parse verifies the token and returns its claims. Expiry is checked
// with the configured leeway; a valid token of the wrong type is
// rejected with ErrTokenWrongType.
func (s *JWTService) Parse(tokenString string, expected service.TokenType) (*service.TokenClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if token.Method.Alg() != s.method.Alg() {
				return nil, errors.Errorf("unexpected signing method: %s", token.Method.Alg())
			}

			return s.secret, nil
		},
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, service.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, service.ErrTokenSignature
		default:
			return nil, service.ErrTokenMalformed
		}
	}
	if !token.Valid {
		return nil, service.ErrTokenMalformed
	}

	if claims.Type != string(expected) {
		return nil, service.ErrTokenWrongType
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, service.ErrTokenMalformed
	}
	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, service.ErrTokenMalformed
	}

	role := entity.Role(claims.Role)
	if !role.IsValid() {
		return nil, service.ErrTokenMalformed
	}

	parsed := &service.TokenClaims{
		UserID: userID,
		Role:   role,
		Type:   service.TokenType(claims.Type),
		JTI:    jti,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}

	return parsed, nil
}

// TTL reports the configured lifetime for a token type.
func (s *JWTService) TTL(tokenType service.TokenType) time.Duration {
	return s.ttls[tokenType]
}
