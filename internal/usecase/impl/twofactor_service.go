package impl

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"athfed/config"
	deliverycontext "athfed/internal/delivery/context"
	"athfed/internal/domain/entity"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/domain/repository"
	"athfed/internal/domain/service"
	"athfed/internal/usecase"
)

// twoFactorService implements the TwoFactorUsecase interface.
type twoFactorService struct {
	txManager      repository.TransactionManager
	userRepo       repository.UserRepository
	hasher         service.PasswordHasher
	totpService    service.TOTPService
	twoFactorStore service.TwoFactorStore
	clock          service.Clock
	setupTTL       time.Duration
	logger         *slog.Logger
}

// TwoFactorServiceParams holds dependencies for twoFactorService, injected by Fx.
type TwoFactorServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	UserRepo       repository.UserRepository
	Hasher         service.PasswordHasher
	TOTPService    service.TOTPService
	TwoFactorStore service.TwoFactorStore
	Clock          service.Clock
	Config         *config.Config
	Logger         *slog.Logger
}

// NewTwoFactorService is the constructor for twoFactorService.
func NewTwoFactorService(params TwoFactorServiceParams) usecase.TwoFactorUsecase {
	return &twoFactorService{
		txManager:      params.TxManager,
		userRepo:       params.UserRepo,
		hasher:         params.Hasher,
		totpService:    params.TOTPService,
		twoFactorStore: params.TwoFactorStore,
		clock:          params.Clock,
		setupTTL:       params.Config.TwoFactor.SetupTTL,
		logger:         params.Logger,
	}
}

// candidateTTL bounds how long an unconfirmed secret stays redeemable.
func (srv *twoFactorService) candidateTTL() time.Duration {
	if srv.setupTTL > 0 {
		return srv.setupTTL
	}

	return 10 * time.Minute
}

func (srv *twoFactorService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Enable generates a candidate secret and provisioning payload.
func (srv *twoFactorService) Enable(ctx context.Context, publicID uuid.UUID) (*service.TOTPProvision, error) {
	user, err := srv.loadUser(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, domainerrors.ErrTwoFactorAlreadyEnabled
	}

	secret, err := srv.totpService.GenerateSecret()
	if err != nil {
		return nil, errors.Wrap(err, "generate totp secret")
	}

	provision, err := srv.totpService.Provision(secret, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "build totp provisioning payload")
	}

	if err := srv.twoFactorStore.SaveSetupSecret(ctx, user.PublicID.String(), secret, srv.candidateTTL()); err != nil {
		return nil, errors.Wrap(err, "stash candidate secret")
	}

	srv.log(ctx).Info("2FA setup started", slog.String("userID", publicID.String()))

	return provision, nil
}

// Confirm verifies a code against the candidate secret and activates 2FA.
func (srv *twoFactorService) Confirm(ctx context.Context, publicID uuid.UUID, code string) (*usecase.ConfirmTwoFactorOutput, error) {
	user, err := srv.loadUser(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, domainerrors.ErrTwoFactorAlreadyEnabled
	}

	secret, err := srv.twoFactorStore.TakeSetupSecret(ctx, user.PublicID.String())
	if err != nil {
		return nil, errors.Wrap(err, "take candidate secret")
	}
	if secret == "" {
		return nil, domainerrors.ErrCodeExpired.WithDetails("no pending 2fa setup")
	}

	ok, err := srv.totpService.Verify(secret, code, srv.clock.Now())
	if err != nil {
		return nil, errors.Wrap(err, "verify totp code")
	}
	if !ok {
		// The candidate was already taken; restash so the user can
		// retry with the same secret until the setup window closes.
		if saveErr := srv.twoFactorStore.SaveSetupSecret(ctx, user.PublicID.String(), secret, srv.candidateTTL()); saveErr != nil {
			srv.log(ctx).Warn("Failed to restash candidate secret", slog.Any("error", saveErr))
		}

		return nil, domainerrors.ErrInvalidCode
	}

	codes, hashes, err := srv.totpService.GenerateBackupCodes()
	if err != nil {
		return nil, errors.Wrap(err, "generate backup codes")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.UserRepo().EnableTwoFactor(ctx, user.ID, secret, hashes)
	})
	if err != nil {
		return nil, errors.Wrap(err, "enable two-factor")
	}

	srv.log(ctx).Info("2FA enabled", slog.String("userID", publicID.String()))

	return &usecase.ConfirmTwoFactorOutput{BackupCodes: codes}, nil
}

// Disable deactivates 2FA after re-verifying password and a code.
func (srv *twoFactorService) Disable(ctx context.Context, publicID uuid.UUID, password, code string) error {
	user, err := srv.loadUser(ctx, publicID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return domainerrors.ErrValidation.WithDetails("two-factor authentication is not enabled")
	}

	ok, _, err := srv.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return domainerrors.ErrInvalidCredentials
	}

	if err := srv.checkDisableCode(ctx, user, code); err != nil {
		return err
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.UserRepo().DisableTwoFactor(ctx, user.ID)
	})
	if err != nil {
		return errors.Wrap(err, "disable two-factor")
	}

	srv.log(ctx).Info("2FA disabled", slog.String("userID", publicID.String()))

	return nil
}

// checkDisableCode accepts a current TOTP code or a remaining backup code.
func (srv *twoFactorService) checkDisableCode(ctx context.Context, user *entity.User, code string) error {
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

	return nil
}

func (srv *twoFactorService) loadUser(ctx context.Context, publicID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByPublicID(ctx, publicID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "look up user")
	}

	return user, nil
}
