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

// passwordService implements the PasswordUsecase interface.
type passwordService struct {
	txManager      repository.TransactionManager
	userRepo       repository.UserRepository
	sessionRepo    repository.RefreshSessionRepository
	hasher         service.PasswordHasher
	tokenService   service.TokenService
	challengeStore service.ChallengeStore
	notifier       service.EmailNotifier
	logger         *slog.Logger
}

// PasswordServiceParams holds dependencies for passwordService, injected by Fx.
type PasswordServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	UserRepo       repository.UserRepository
	SessionRepo    repository.RefreshSessionRepository
	Hasher         service.PasswordHasher
	TokenService   service.TokenService
	ChallengeStore service.ChallengeStore
	Notifier       service.EmailNotifier
	Logger         *slog.Logger
}

// NewPasswordService is the constructor for passwordService.
func NewPasswordService(params PasswordServiceParams) usecase.PasswordUsecase {
	return &passwordService{
		txManager:      params.TxManager,
		userRepo:       params.UserRepo,
		sessionRepo:    params.SessionRepo,
		hasher:         params.Hasher,
		tokenService:   params.TokenService,
		challengeStore: params.ChallengeStore,
		notifier:       params.Notifier,
		logger:         params.Logger,
	}
}

func (srv *passwordService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// RequestEmailVerification issues a verification code to the
// authenticated user's address.
func (srv *passwordService) RequestEmailVerification(ctx context.Context, publicID uuid.UUID) error {
	user, err := srv.userRepo.FindByPublicID(ctx, publicID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrUnauthorized
	}
	if err != nil {
		return errors.Wrap(err, "look up user")
	}

	if user.IsEmailVerified {
		return domainerrors.ErrAlreadyVerified
	}

	code, ttl, err := srv.challengeStore.Issue(ctx, service.PurposeEmailVerification, user.Email)
	if err != nil {
		return srv.mapChallengeError(err)
	}

	if err := srv.notifier.SendVerificationCode(ctx, user.Email, code, ttl); err != nil {
		return errors.Wrap(domainerrors.ErrTransportUnavailable, err.Error())
	}

	srv.log(ctx).Info("Verification code issued", slog.String("userID", publicID.String()))

	return nil
}

// VerifyEmail consumes a verification code and marks the address verified.
func (srv *passwordService) VerifyEmail(ctx context.Context, email, code string) error {
	email = entity.NormalizeEmail(email)

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		// Spend the attempt anyway so the response does not separate
		// unknown addresses from wrong codes.
		_ = srv.challengeStore.Consume(ctx, service.PurposeEmailVerification, email, code)

		return domainerrors.ErrInvalidCode
	}
	if err != nil {
		return errors.Wrap(err, "look up user")
	}

	if err := srv.challengeStore.Consume(ctx, service.PurposeEmailVerification, email, code); err != nil {
		return srv.mapChallengeError(err)
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.UserRepo().SetEmailVerified(ctx, user.ID)
	})
	if err != nil {
		return errors.Wrap(err, "mark email verified")
	}

	srv.log(ctx).Info("Email verified", slog.String("userID", user.PublicID.String()))

	return nil
}

// RequestPasswordReset issues a reset code. The outcome is identical
// whether or not the address is registered.
func (srv *passwordService) RequestPasswordReset(ctx context.Context, email string) error {
	email = entity.NormalizeEmail(email)

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		srv.log(ctx).Debug("Reset requested for unknown address")

		return nil
	}
	if err != nil {
		return errors.Wrap(err, "look up user")
	}

	code, ttl, err := srv.challengeStore.Issue(ctx, service.PurposePasswordReset, email)
	if err != nil {
		return srv.mapChallengeError(err)
	}

	if err := srv.notifier.SendPasswordResetCode(ctx, email, code, ttl); err != nil {
		return errors.Wrap(domainerrors.ErrTransportUnavailable, err.Error())
	}

	srv.log(ctx).Info("Reset code issued", slog.String("userID", user.PublicID.String()))

	return nil
}

// ValidatePasswordReset exchanges a valid reset code for a short-lived
// reset-authorization token. The code stays live for the confirm step.
func (srv *passwordService) ValidatePasswordReset(ctx context.Context, email, code string) (string, error) {
	email = entity.NormalizeEmail(email)

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		_ = srv.challengeStore.Validate(ctx, service.PurposePasswordReset, email, code)

		return "", domainerrors.ErrInvalidCode
	}
	if err != nil {
		return "", errors.Wrap(err, "look up user")
	}

	if err := srv.challengeStore.Validate(ctx, service.PurposePasswordReset, email, code); err != nil {
		return "", srv.mapChallengeError(err)
	}

	token, _, err := srv.tokenService.Generate(user, service.TokenResetAuthorization)
	if err != nil {
		return "", errors.Wrap(err, "generate reset-authorization token")
	}

	srv.log(ctx).Info("Reset code validated", slog.String("userID", user.PublicID.String()))

	return token, nil
}

// ConfirmPasswordReset redeems a reset-authorization token, sets the
// new password and revokes every session.
func (srv *passwordService) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	claims, err := srv.tokenService.Parse(resetToken, service.TokenResetAuthorization)
	if errors.Is(err, service.ErrTokenExpired) {
		return domainerrors.ErrCodeExpired
	}
	if err != nil {
		return domainerrors.ErrInvalidCode
	}

	user, err := srv.userRepo.FindByPublicID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrInvalidCode
	}
	if err != nil {
		return errors.Wrap(err, "look up user")
	}

	// The challenge underpins the token: once it is gone the token is
	// spent, so a confirm cannot be replayed within the token's TTL.
	status, err := srv.challengeStore.Status(ctx, service.PurposePasswordReset, user.Email)
	if err != nil {
		return srv.mapChallengeError(err)
	}
	if !status.Exists {
		return domainerrors.ErrCodeExpired
	}

	if err := srv.hasher.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	hash, err := srv.hasher.Hash(newPassword)
	if err != nil {
		return errors.Wrap(err, "hash new password")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.UserRepo().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}
		_, err := repoFactory.SessionRepo().RevokeAllByUserID(ctx, user.ID)

		return err
	})
	if err != nil {
		return errors.Wrap(err, "apply password reset")
	}

	if err := srv.challengeStore.Revoke(ctx, service.PurposePasswordReset, user.Email); err != nil {
		srv.log(ctx).Warn("Failed to destroy reset challenge", slog.Any("error", err))
	}

	srv.log(ctx).Info("Password reset completed", slog.String("userID", user.PublicID.String()))

	return nil
}

// ChangePassword verifies the current password, sets the new one and
// revokes every other session.
func (srv *passwordService) ChangePassword(ctx context.Context, input usecase.ChangePasswordInput) error {
	user, err := srv.userRepo.FindByPublicID(ctx, input.PublicID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrUnauthorized
	}
	if err != nil {
		return errors.Wrap(err, "look up user")
	}

	ok, _, err := srv.hasher.Verify(input.CurrentPassword, user.PasswordHash)
	if err != nil || !ok {
		return domainerrors.ErrInvalidCredentials
	}

	if err := srv.hasher.ValidatePasswordStrength(input.NewPassword); err != nil {
		return err
	}

	hash, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		return errors.Wrap(err, "hash new password")
	}

	keepJTI := uuid.Nil
	if input.KeepRefreshToken != "" {
		if claims, parseErr := srv.tokenService.Parse(input.KeepRefreshToken, service.TokenRefresh); parseErr == nil {
			keepJTI = claims.JTI
		}
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.UserRepo().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}

		sessionRepo := repoFactory.SessionRepo()
		if keepJTI != uuid.Nil {
			_, err := sessionRepo.RevokeAllByUserIDExcept(ctx, user.ID, keepJTI)

			return err
		}
		_, err := sessionRepo.RevokeAllByUserID(ctx, user.ID)

		return err
	})
	if err != nil {
		return errors.Wrap(err, "apply password change")
	}

	srv.log(ctx).Info("Password changed", slog.String("userID", input.PublicID.String()))

	return nil
}

// mapChallengeError translates store failures to their response kinds.
func (srv *passwordService) mapChallengeError(err error) error {
	switch {
	case errors.Is(err, service.ErrChallengeInvalid):
		return domainerrors.ErrInvalidCode
	case errors.Is(err, service.ErrChallengeExpired):
		return domainerrors.ErrCodeExpired
	case errors.Is(err, service.ErrChallengeLockedOut):
		return domainerrors.ErrLockedOut
	case errors.Is(err, service.ErrChallengeUnavailable):
		return domainerrors.ErrTransportUnavailable
	default:
		return errors.Wrap(err, "challenge store")
	}
}
