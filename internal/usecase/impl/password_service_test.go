package impl

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"athfed/internal/domain/entity"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/domain/service"
	"athfed/internal/usecase"
)

type passwordFixture struct {
	svc            usecase.PasswordUsecase
	userRepo       *fakeUserRepo
	sessionRepo    *fakeSessionRepo
	hasher         *fakeHasher
	tokenService   *fakeTokenService
	challengeStore *fakeChallengeStore
	notifier       *fakeNotifier
	clock          *fakeClock
}

func newPasswordFixture() *passwordFixture {
	clock := &fakeClock{now: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)}
	userRepo := newFakeUserRepo()
	sessionRepo := newFakeSessionRepo(func() time.Time { return clock.now })
	hasher := newFakeHasher()
	tokenService := newFakeTokenService(clock)
	challengeStore := newFakeChallengeStore()
	notifier := &fakeNotifier{}

	svc := NewPasswordService(PasswordServiceParams{
		TxManager:      &fakeTxManager{userRepo: userRepo, sessionRepo: sessionRepo},
		UserRepo:       userRepo,
		SessionRepo:    sessionRepo,
		Hasher:         hasher,
		TokenService:   tokenService,
		ChallengeStore: challengeStore,
		Notifier:       notifier,
		Logger:         testLogger(),
	})

	return &passwordFixture{
		svc:            svc,
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		hasher:         hasher,
		tokenService:   tokenService,
		challengeStore: challengeStore,
		notifier:       notifier,
		clock:          clock,
	}
}

func (f *passwordFixture) seedUser(t *testing.T) *entity.User {
	t.Helper()

	user := &entity.User{
		Email:        "runner@example.com",
		PasswordHash: "hashed:old-pw-1!",
		Role:         entity.RoleAthlete,
		IsActive:     true,
	}
	require.NoError(t, f.userRepo.Create(context.Background(), user))

	return user
}

func (f *passwordFixture) seedSession(t *testing.T, userID uuid.UUID) uuid.UUID {
	t.Helper()

	session := &entity.RefreshSession{
		UserID:     userID,
		AccessJTI:  uuid.New(),
		RefreshJTI: uuid.New(),
		Status:     entity.SessionActive,
		IssuedAt:   f.clock.now,
		ExpiresAt:  f.clock.now.Add(7 * 24 * time.Hour),
	}
	require.NoError(t, f.sessionRepo.Create(context.Background(), session))

	return session.RefreshJTI
}

func TestPasswordService_RequestEmailVerification(t *testing.T) {
	f := newPasswordFixture()
	user := f.seedUser(t)

	require.NoError(t, f.svc.RequestEmailVerification(context.Background(), user.PublicID))
	assert.Equal(t, 1, f.notifier.sentCount())
	assert.Equal(t, "verify", f.notifier.sent[0].kind)
	assert.Equal(t, "runner@example.com", f.notifier.sent[0].email)
}

func TestPasswordService_RequestEmailVerificationAlreadyVerified(t *testing.T) {
	f := newPasswordFixture()
	user := f.seedUser(t)
	require.NoError(t, f.userRepo.SetEmailVerified(context.Background(), user.ID))

	err := f.svc.RequestEmailVerification(context.Background(), user.PublicID)
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyVerified)
	assert.Zero(t, f.notifier.sentCount())
}

func TestPasswordService_VerifyEmail(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	user := f.seedUser(t)

	require.NoError(t, f.svc.RequestEmailVerification(ctx, user.PublicID))
	code := f.notifier.sent[0].code

	require.NoError(t, f.svc.VerifyEmail(ctx, "Runner@Example.com", code))
	assert.True(t, f.userRepo.get(user.ID).IsEmailVerified)

	// The code is consumed.
	err := f.svc.VerifyEmail(ctx, "runner@example.com", code)
	assert.ErrorIs(t, err, domainerrors.ErrCodeExpired)
}

func TestPasswordService_VerifyEmailWrongCode(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	user := f.seedUser(t)

	require.NoError(t, f.svc.RequestEmailVerification(ctx, user.PublicID))

	err := f.svc.VerifyEmail(ctx, "runner@example.com", "999999")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCode)
	assert.False(t, f.userRepo.get(user.ID).IsEmailVerified)
}

func TestPasswordService_VerifyEmailUnknownAddress(t *testing.T) {
	f := newPasswordFixture()

	err := f.svc.VerifyEmail(context.Background(), "nobody@example.com", "123456")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCode)
}

func TestPasswordService_RequestPasswordResetUnknownAddressIsSilent(t *testing.T) {
	f := newPasswordFixture()

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
	assert.Zero(t, f.notifier.sentCount())
	assert.Zero(t, f.challengeStore.issued)
}

func TestPasswordService_ResetPipeline(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	user := f.seedUser(t)
	f.seedSession(t, user.ID)
	f.seedSession(t, user.ID)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "runner@example.com"))
	require.Equal(t, 1, f.notifier.sentCount())
	code := f.notifier.sent[0].code

	resetToken, err := f.svc.ValidatePasswordReset(ctx, "runner@example.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, resetToken, "fresh-pw-2!"))

	stored := f.userRepo.get(user.ID)
	assert.Equal(t, "hashed:fresh-pw-2!", stored.PasswordHash)
	assert.Zero(t, f.sessionRepo.activeCount(user.ID))

	// The token is spent together with the underlying challenge.
	err = f.svc.ConfirmPasswordReset(ctx, resetToken, "another-pw-3!")
	assert.ErrorIs(t, err, domainerrors.ErrCodeExpired)
}

func TestPasswordService_ValidateResetWrongCode(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	f.seedUser(t)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "runner@example.com"))

	_, err := f.svc.ValidatePasswordReset(ctx, "runner@example.com", "999999")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCode)
}

func TestPasswordService_ValidateResetLockout(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	f.seedUser(t)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "runner@example.com"))
	code := f.notifier.sent[0].code

	for range 5 {
		_, err := f.svc.ValidatePasswordReset(ctx, "runner@example.com", "999999")
		assert.ErrorIs(t, err, domainerrors.ErrInvalidCode)
	}

	// The cap destroys the code even for the right value.
	_, err := f.svc.ValidatePasswordReset(ctx, "runner@example.com", code)
	assert.ErrorIs(t, err, domainerrors.ErrLockedOut)
}

func TestPasswordService_ConfirmResetWeakPassword(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	user := f.seedUser(t)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "runner@example.com"))
	code := f.notifier.sent[0].code
	resetToken, err := f.svc.ValidatePasswordReset(ctx, "runner@example.com", code)
	require.NoError(t, err)

	err = f.svc.ConfirmPasswordReset(ctx, resetToken, "weak")
	assert.ErrorIs(t, err, domainerrors.ErrWeakPassword)

	// Nothing changed; the challenge is still live for a retry.
	assert.Equal(t, "hashed:old-pw-1!", f.userRepo.get(user.ID).PasswordHash)
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, resetToken, "fresh-pw-2!"))
}

func TestPasswordService_ConfirmResetGarbageToken(t *testing.T) {
	f := newPasswordFixture()

	err := f.svc.ConfirmPasswordReset(context.Background(), "garbage", "fresh-pw-2!")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCode)
}

func TestPasswordService_ConfirmResetExpiredToken(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	f.seedUser(t)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "runner@example.com"))
	code := f.notifier.sent[0].code
	resetToken, err := f.svc.ValidatePasswordReset(ctx, "runner@example.com", code)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(11 * time.Minute)

	err = f.svc.ConfirmPasswordReset(ctx, resetToken, "fresh-pw-2!")
	assert.ErrorIs(t, err, domainerrors.ErrCodeExpired)
}

func TestPasswordService_ChangePasswordKeepsCurrentSession(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	user := f.seedUser(t)

	f.seedSession(t, user.ID)
	f.seedSession(t, user.ID)

	keepToken, keepJTI, err := f.tokenService.Generate(user, service.TokenRefresh)
	require.NoError(t, err)
	session := &entity.RefreshSession{
		UserID:     user.ID,
		AccessJTI:  uuid.New(),
		RefreshJTI: keepJTI,
		Status:     entity.SessionActive,
		IssuedAt:   f.clock.now,
		ExpiresAt:  f.clock.now.Add(7 * 24 * time.Hour),
	}
	require.NoError(t, f.sessionRepo.Create(ctx, session))

	require.NoError(t, f.svc.ChangePassword(ctx, usecase.ChangePasswordInput{
		PublicID:         user.PublicID,
		CurrentPassword:  "old-pw-1!",
		NewPassword:      "fresh-pw-2!",
		KeepRefreshToken: keepToken,
	}))

	assert.Equal(t, "hashed:fresh-pw-2!", f.userRepo.get(user.ID).PasswordHash)
	assert.Equal(t, 1, f.sessionRepo.activeCount(user.ID))

	_, err = f.sessionRepo.FindActiveByRefreshJTI(ctx, keepJTI)
	assert.NoError(t, err)
}

func TestPasswordService_ChangePasswordWrongCurrent(t *testing.T) {
	f := newPasswordFixture()
	user := f.seedUser(t)

	err := f.svc.ChangePassword(context.Background(), usecase.ChangePasswordInput{
		PublicID:        user.PublicID,
		CurrentPassword: "wrong-pw-1!",
		NewPassword:     "fresh-pw-2!",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, "hashed:old-pw-1!", f.userRepo.get(user.ID).PasswordHash)
}

func TestPasswordService_ChangePasswordWeakNew(t *testing.T) {
	f := newPasswordFixture()
	user := f.seedUser(t)

	err := f.svc.ChangePassword(context.Background(), usecase.ChangePasswordInput{
		PublicID:        user.PublicID,
		CurrentPassword: "old-pw-1!",
		NewPassword:     "weak",
	})
	assert.ErrorIs(t, err, domainerrors.ErrWeakPassword)
}

func TestPasswordService_ChangePasswordWithoutKeepRevokesAll(t *testing.T) {
	f := newPasswordFixture()
	ctx := context.Background()
	user := f.seedUser(t)
	f.seedSession(t, user.ID)
	f.seedSession(t, user.ID)

	require.NoError(t, f.svc.ChangePassword(ctx, usecase.ChangePasswordInput{
		PublicID:        user.PublicID,
		CurrentPassword: "old-pw-1!",
		NewPassword:     "fresh-pw-2!",
	}))

	assert.Zero(t, f.sessionRepo.activeCount(user.ID))
}
