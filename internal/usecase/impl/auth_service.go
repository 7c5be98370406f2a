// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	deliverycontext "athfed/internal/delivery/context"
	"athfed/internal/domain/entity"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/domain/repository"
	"athfed/internal/domain/service"
	"athfed/internal/usecase"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager      repository.TransactionManager
	userRepo       repository.UserRepository
	sessionRepo    repository.RefreshSessionRepository
	hasher         service.PasswordHasher
	tokenService   service.TokenService
	totpService    service.TOTPService
	twoFactorStore service.TwoFactorStore
	clock          service.Clock
	logger         *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	UserRepo       repository.UserRepository
	SessionRepo    repository.RefreshSessionRepository
	Hasher         service.PasswordHasher
	TokenService   service.TokenService
	TOTPService    service.TOTPService
	TwoFactorStore service.TwoFactorStore
	Clock          service.Clock
	Logger         *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		txManager:      params.TxManager,
		userRepo:       params.UserRepo,
		sessionRepo:    params.SessionRepo,
		hasher:         params.Hasher,
		tokenService:   params.TokenService,
		totpService:    params.TOTPService,
		twoFactorStore: params.TwoFactorStore,
		clock:          params.Clock,
		logger:         params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates a new identity with a policy-checked password.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.UserInfo, error) {
	role := input.Role
	if role == "" {
		role = entity.RoleAthlete
	}
	if !role.IsValid() {
		return nil, domainerrors.ErrValidation.WithDetails("unknown role")
	}

	if err := srv.hasher.ValidatePasswordStrength(input.Password); err != nil {
		srv.log(ctx).Warn("Password rejected during registration", slog.Any("error", err))

		return nil, err
	}

	hash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password during registration")
	}

	user := &entity.User{
		Email:        entity.NormalizeEmail(input.Email),
		Name:         input.Name,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.UserRepo().Create(ctx, user)
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		return nil, domainerrors.ErrConflictEmail
	}
	if err != nil {
		srv.log(ctx).Error("Failed to create user", slog.Any("error", err))

		return nil, errors.Wrap(err, "create user during registration")
	}

	srv.log(ctx).Info("User registered",
		slog.String("userID", user.PublicID.String()),
		slog.String("role", role.String()),
	)

	return toUserInfo(user), nil
}

// Login verifies credentials and either issues a token pair or, for
// 2FA-enabled accounts, a pending token.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		// Burn equivalent hashing work so a miss is not observable
		// through response timing.
		srv.hasher.DummyVerify(input.Password)

		return nil, domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "look up user for login")
	}

	ok, needsRehash, err := srv.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		srv.log(ctx).Error("Stored hash unreadable",
			slog.String("userID", user.PublicID.String()), slog.Any("error", err))

		return nil, domainerrors.ErrInvalidCredentials
	}
	if !ok {
		return nil, domainerrors.ErrInvalidCredentials
	}

	// The account state is revealed only after the password checks out.
	if !user.IsActive {
		return nil, domainerrors.ErrInactive
	}

	if needsRehash {
		srv.rehash(ctx, user, input.Password)
	}

	if user.TwoFactorEnabled {
		pendingToken, jti, err := srv.tokenService.Generate(user, service.TokenPendingTwoFactor)
		if err != nil {
			return nil, errors.Wrap(err, "generate pending token")
		}
		ttl := srv.tokenService.TTL(service.TokenPendingTwoFactor)
		if err := srv.twoFactorStore.SavePendingLogin(ctx, jti.String(), ttl); err != nil {
			return nil, errors.Wrap(err, "save pending login marker")
		}

		srv.log(ctx).Info("Login pending second factor", slog.String("userID", user.PublicID.String()))

		return &usecase.LoginOutput{TwoFactorRequired: true, PendingToken: pendingToken}, nil
	}

	return srv.issueTokenPair(ctx, user, input.UserAgent)
}

// VerifyTwoFactor redeems a pending token plus a TOTP or backup code.
func (srv *authService) VerifyTwoFactor(ctx context.Context, input usecase.VerifyTwoFactorInput) (*usecase.LoginOutput, error) {
	claims, err := srv.tokenService.Parse(input.PendingToken, service.TokenPendingTwoFactor)
	if errors.Is(err, service.ErrTokenExpired) {
		return nil, domainerrors.ErrCodeExpired
	}
	if err != nil {
		return nil, domainerrors.ErrUnauthorized
	}

	user, err := srv.userRepo.FindByPublicID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "look up user for 2fa verify")
	}
	if !user.IsActive {
		return nil, domainerrors.ErrInactive
	}

	if err := srv.checkSecondFactor(ctx, user, input.Code); err != nil {
		return nil, err
	}

	// The marker is consumed only after a valid code, so a typo does
	// not force the user back through the password step. Concurrent
	// redemptions still resolve to a single winner here.
	redeemed, err := srv.twoFactorStore.ConsumePendingLogin(ctx, claims.JTI.String())
	if err != nil {
		return nil, errors.Wrap(err, "consume pending login marker")
	}
	if !redeemed {
		return nil, domainerrors.ErrCodeExpired
	}

	return srv.issueTokenPair(ctx, user, input.UserAgent)
}

// checkSecondFactor accepts a current TOTP code or a single-use backup code.
func (srv *authService) checkSecondFactor(ctx context.Context, user *entity.User, code string) error {
	ok, err := srv.totpService.Verify(user.TwoFactorSecret, code, srv.clock.Now())
	if err != nil {
		return errors.Wrap(err, "verify totp code")
	}
	if ok {
		return nil
	}

	codeHash := srv.totpService.HashBackupCode(code)
	var consumed bool
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var txErr error
		consumed, txErr = repoFactory.UserRepo().ConsumeBackupCode(ctx, user.ID, codeHash)

		return txErr
	})
	if err != nil {
		return errors.Wrap(err, "consume backup code")
	}
	if !consumed {
		return domainerrors.ErrInvalidCode
	}

	srv.log(ctx).Info("Backup code redeemed", slog.String("userID", user.PublicID.String()))

	return nil
}

// Refresh rotates a refresh token for a new pair.
func (srv *authService) Refresh(ctx context.Context, input usecase.RefreshInput) (*usecase.LoginOutput, error) {
	claims, err := srv.tokenService.Parse(input.RefreshToken, service.TokenRefresh)
	if err != nil {
		return nil, domainerrors.ErrRefreshInvalid
	}

	user, err := srv.userRepo.FindByPublicID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrRefreshInvalid
	}
	if err != nil {
		return nil, errors.Wrap(err, "look up user for refresh")
	}
	if !user.IsActive {
		return nil, domainerrors.ErrInactive
	}

	accessToken, accessJTI, err := srv.tokenService.Generate(user, service.TokenAccess)
	if err != nil {
		return nil, errors.Wrap(err, "generate access token")
	}
	refreshToken, refreshJTI, err := srv.tokenService.Generate(user, service.TokenRefresh)
	if err != nil {
		return nil, errors.Wrap(err, "generate refresh token")
	}

	expiresAt := srv.clock.Now().Add(srv.tokenService.TTL(service.TokenRefresh))
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		_, rotateErr := repoFactory.SessionRepo().Rotate(ctx, repository.RotateInput{
			OldRefreshJTI: claims.JTI,
			NewAccessJTI:  accessJTI,
			NewRefreshJTI: refreshJTI,
			NewExpiresAt:  expiresAt,
			UserAgent:     input.UserAgent,
		})

		return rotateErr
	})
	if errors.Is(err, repository.ErrSessionReplayed) {
		// A second redemption of the same refresh token means the token
		// leaked. Every session for the user is torn down.
		revoked, revokeErr := srv.sessionRepo.RevokeAllByUserID(ctx, user.ID)
		if revokeErr != nil {
			srv.log(ctx).Error("Failed to revoke sessions after replay",
				slog.String("userID", user.PublicID.String()), slog.Any("error", revokeErr))
		}
		srv.log(ctx).Warn("Refresh token replay detected",
			slog.String("userID", user.PublicID.String()),
			slog.Int64("revokedSessions", revoked),
		)

		return nil, domainerrors.ErrRefreshReplayed
	}
	if errors.Is(err, repository.ErrSessionNotFound) || errors.Is(err, repository.ErrSessionExpired) {
		return nil, domainerrors.ErrRefreshInvalid
	}
	if err != nil {
		return nil, errors.Wrap(err, "rotate refresh session")
	}

	return &usecase.LoginOutput{
		Tokens: &usecase.TokenPair{
			AccessToken:      accessToken,
			RefreshToken:     refreshToken,
			TokenType:        "Bearer",
			ExpiresInSeconds: int64(srv.tokenService.TTL(service.TokenAccess).Seconds()),
		},
		User: toUserInfo(user),
	}, nil
}

// Logout revokes the session identified by the refresh token.
func (srv *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := srv.tokenService.Parse(refreshToken, service.TokenRefresh)
	if err != nil {
		return domainerrors.ErrRefreshInvalid
	}

	err = srv.sessionRepo.RevokeByRefreshJTI(ctx, claims.JTI)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return domainerrors.ErrRefreshInvalid
	}
	if err != nil {
		return errors.Wrap(err, "revoke session")
	}

	srv.log(ctx).Info("Session revoked", slog.String("userID", claims.UserID.String()))

	return nil
}

// LogoutAll revokes every session of the user.
func (srv *authService) LogoutAll(ctx context.Context, publicID uuid.UUID) (int64, error) {
	user, err := srv.userRepo.FindByPublicID(ctx, publicID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return 0, domainerrors.ErrUnauthorized
	}
	if err != nil {
		return 0, errors.Wrap(err, "look up user for logout-all")
	}

	revoked, err := srv.sessionRepo.RevokeAllByUserID(ctx, user.ID)
	if err != nil {
		return 0, errors.Wrap(err, "revoke all sessions")
	}

	srv.log(ctx).Info("All sessions revoked",
		slog.String("userID", publicID.String()), slog.Int64("count", revoked))

	return revoked, nil
}

// ListSessions lists the caller's active sessions, flagging the current one.
func (srv *authService) ListSessions(ctx context.Context, publicID uuid.UUID, accessJTI uuid.UUID) ([]*entity.SessionInfo, error) {
	return srv.listSessions(ctx, publicID, accessJTI)
}

// ListSessionsForUser lists another user's active sessions.
func (srv *authService) ListSessionsForUser(ctx context.Context, publicID uuid.UUID) ([]*entity.SessionInfo, error) {
	return srv.listSessions(ctx, publicID, uuid.Nil)
}

func (srv *authService) listSessions(ctx context.Context, publicID uuid.UUID, accessJTI uuid.UUID) ([]*entity.SessionInfo, error) {
	user, err := srv.userRepo.FindByPublicID(ctx, publicID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "look up user for session listing")
	}

	sessions, err := srv.sessionRepo.FindActiveByUserID(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}

	infos := make([]*entity.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, &entity.SessionInfo{
			ID:        session.ID,
			UserAgent: session.UserAgent,
			IssuedAt:  session.IssuedAt,
			ExpiresAt: session.ExpiresAt,
			Current:   accessJTI != uuid.Nil && session.AccessJTI == accessJTI,
			RevokedAt: session.RevokedAt,
		})
	}

	return infos, nil
}

// Me returns the identity summary for the authenticated user.
func (srv *authService) Me(ctx context.Context, publicID uuid.UUID) (*usecase.UserInfo, error) {
	user, err := srv.userRepo.FindByPublicID(ctx, publicID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "look up user")
	}

	return toUserInfo(user), nil
}

// CleanupExpiredSessions deletes expired session rows.
func (srv *authService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	deleted, err := srv.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "delete expired sessions")
	}

	if deleted > 0 {
		srv.log(ctx).Debug("Expired sessions purged", slog.Int64("count", deleted))
	}

	return deleted, nil
}

// issueTokenPair mints an access/refresh pair and records the session.
func (srv *authService) issueTokenPair(ctx context.Context, user *entity.User, userAgent string) (*usecase.LoginOutput, error) {
	accessToken, accessJTI, err := srv.tokenService.Generate(user, service.TokenAccess)
	if err != nil {
		return nil, errors.Wrap(err, "generate access token")
	}
	refreshToken, refreshJTI, err := srv.tokenService.Generate(user, service.TokenRefresh)
	if err != nil {
		return nil, errors.Wrap(err, "generate refresh token")
	}

	now := srv.clock.Now()
	session := &entity.RefreshSession{
		UserID:     user.ID,
		AccessJTI:  accessJTI,
		RefreshJTI: refreshJTI,
		Status:     entity.SessionActive,
		UserAgent:  userAgent,
		IssuedAt:   now,
		ExpiresAt:  now.Add(srv.tokenService.TTL(service.TokenRefresh)),
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.SessionRepo().Create(ctx, session)
	})
	if err != nil {
		return nil, errors.Wrap(err, "record refresh session")
	}

	srv.log(ctx).Info("Token pair issued", slog.String("userID", user.PublicID.String()))

	return &usecase.LoginOutput{
		Tokens: &usecase.TokenPair{
			AccessToken:      accessToken,
			RefreshToken:     refreshToken,
			TokenType:        "Bearer",
			ExpiresInSeconds: int64(srv.tokenService.TTL(service.TokenAccess).Seconds()),
		},
		User: toUserInfo(user),
	}, nil
}

// rehash upgrades a stored hash to current parameters after a
// successful login. Failures are logged and otherwise ignored.
func (srv *authService) rehash(ctx context.Context, user *entity.User, password string) {
	hash, err := srv.hasher.Hash(password)
	if err != nil {
		srv.log(ctx).Warn("Rehash failed", slog.Any("error", err))

		return
	}

	if err := srv.userRepo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		srv.log(ctx).Warn("Rehash store failed",
			slog.String("userID", user.PublicID.String()), slog.Any("error", err))

		return
	}

	srv.log(ctx).Info("Password hash upgraded", slog.String("userID", user.PublicID.String()))
}

// toUserInfo maps the entity to its client-facing summary.
func toUserInfo(user *entity.User) *usecase.UserInfo {
	return &usecase.UserInfo{
		ID:               user.PublicID,
		Email:            user.Email,
		Name:             user.Name,
		Role:             user.Role.String(),
		IsActive:         user.IsActive,
		IsEmailVerified:  user.IsEmailVerified,
		TwoFactorEnabled: user.TwoFactorEnabled,
		CreatedAt:        user.CreatedAt,
	}
}
