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
	"athfed/internal/usecase"
)

type authFixture struct {
	svc            usecase.AuthUsecase
	userRepo       *fakeUserRepo
	sessionRepo    *fakeSessionRepo
	hasher         *fakeHasher
	tokenService   *fakeTokenService
	totpService    *fakeTOTPService
	twoFactorStore *fakeTwoFactorStore
	clock          *fakeClock
}

func newAuthFixture() *authFixture {
	clock := &fakeClock{now: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)}
	userRepo := newFakeUserRepo()
	sessionRepo := newFakeSessionRepo(func() time.Time { return clock.now })
	hasher := newFakeHasher()
	tokenService := newFakeTokenService(clock)
	totpService := &fakeTOTPService{}
	twoFactorStore := newFakeTwoFactorStore()

	svc := NewAuthService(AuthServiceParams{
		TxManager:      &fakeTxManager{userRepo: userRepo, sessionRepo: sessionRepo},
		UserRepo:       userRepo,
		SessionRepo:    sessionRepo,
		Hasher:         hasher,
		TokenService:   tokenService,
		TOTPService:    totpService,
		TwoFactorStore: twoFactorStore,
		Clock:          clock,
		Logger:         testLogger(),
	})

	return &authFixture{
		svc:            svc,
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		hasher:         hasher,
		tokenService:   tokenService,
		totpService:    totpService,
		twoFactorStore: twoFactorStore,
		clock:          clock,
	}
}

func (f *authFixture) seedUser(t *testing.T, email, password string) *entity.User {
	t.Helper()

	user := &entity.User{
		Email:        email,
		Name:         "Test Runner",
		PasswordHash: "hashed:" + password,
		Role:         entity.RoleAthlete,
		IsActive:     true,
	}
	require.NoError(t, f.userRepo.Create(context.Background(), user))

	return user
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	info, err := f.svc.Register(ctx, usecase.RegisterInput{
		Name:     "Jo Sprinter",
		Email:    "  Jo.Sprinter@Example.COM ",
		Password: "good-password-1!",
		Role:     entity.RoleCoach,
	})
	require.NoError(t, err)
	assert.Equal(t, "jo.sprinter@example.com", info.Email)
	assert.Equal(t, "coach", info.Role)
	assert.True(t, info.IsActive)
	assert.NotEqual(t, uuid.Nil, info.ID)
}

func TestAuthService_RegisterConflict(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "taken@example.com", "pw-1!")

	_, err := f.svc.Register(ctx, usecase.RegisterInput{
		Email:    "TAKEN@example.com",
		Password: "good-password-1!",
	})
	assert.ErrorIs(t, err, domainerrors.ErrConflictEmail)
}

func TestAuthService_RegisterWeakPassword(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.Register(context.Background(), usecase.RegisterInput{
		Email:    "new@example.com",
		Password: "weak",
	})
	assert.ErrorIs(t, err, domainerrors.ErrWeakPassword)
}

func TestAuthService_RegisterUnknownRole(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.Register(context.Background(), usecase.RegisterInput{
		Email:    "new@example.com",
		Password: "good-password-1!",
		Role:     entity.Role("superuser"),
	})

	var appErr domainerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION", appErr.ErrorCode())
}

func TestAuthService_LoginSuccess(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "runner@example.com", "correct-pw-1!")

	out, err := f.svc.Login(ctx, usecase.LoginInput{
		Email:     "runner@example.com",
		Password:  "correct-pw-1!",
		UserAgent: "cli/1.0",
	})
	require.NoError(t, err)
	assert.False(t, out.TwoFactorRequired)
	require.NotNil(t, out.Tokens)
	assert.NotEmpty(t, out.Tokens.AccessToken)
	assert.NotEmpty(t, out.Tokens.RefreshToken)
	assert.Equal(t, "Bearer", out.Tokens.TokenType)
	assert.Equal(t, int64(900), out.Tokens.ExpiresInSeconds)

	assert.Equal(t, 1, f.sessionRepo.activeCount(user.ID))
}

func TestAuthService_LoginUnknownEmailBurnsHashingWork(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.Login(context.Background(), usecase.LoginInput{
		Email:    "nobody@example.com",
		Password: "whatever-1!",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, 1, f.hasher.dummyVerifyCalls)
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	f := newAuthFixture()
	f.seedUser(t, "runner@example.com", "correct-pw-1!")

	_, err := f.svc.Login(context.Background(), usecase.LoginInput{
		Email:    "runner@example.com",
		Password: "wrong-pw-1!",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAuthService_LoginInactive(t *testing.T) {
	f := newAuthFixture()
	user := f.seedUser(t, "benched@example.com", "correct-pw-1!")
	f.userRepo.users[user.ID].IsActive = false

	// Wrong password on an inactive account must still read as invalid
	// credentials, not reveal the account state.
	_, err := f.svc.Login(context.Background(), usecase.LoginInput{
		Email:    "benched@example.com",
		Password: "wrong-pw-1!",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), usecase.LoginInput{
		Email:    "benched@example.com",
		Password: "correct-pw-1!",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInactive)
}

func TestAuthService_LoginUpgradesWeakHash(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	user := &entity.User{
		Email:        "legacy@example.com",
		PasswordHash: "weak:old-pw-1!",
		Role:         entity.RoleAthlete,
		IsActive:     true,
	}
	require.NoError(t, f.userRepo.Create(ctx, user))
	f.hasher.markWeak("weak:old-pw-1!")

	_, err := f.svc.Login(ctx, usecase.LoginInput{
		Email:    "legacy@example.com",
		Password: "old-pw-1!",
	})
	require.NoError(t, err)

	assert.Equal(t, "hashed:old-pw-1!", f.userRepo.get(user.ID).PasswordHash)
}

func TestAuthService_LoginWithTwoFactorReturnsPendingToken(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "guarded@example.com", "correct-pw-1!")
	require.NoError(t, f.userRepo.EnableTwoFactor(ctx, user.ID, "SECRET", nil))

	out, err := f.svc.Login(ctx, usecase.LoginInput{
		Email:    "guarded@example.com",
		Password: "correct-pw-1!",
	})
	require.NoError(t, err)
	assert.True(t, out.TwoFactorRequired)
	assert.NotEmpty(t, out.PendingToken)
	assert.Nil(t, out.Tokens)

	// No session exists until the second factor is presented.
	assert.Equal(t, 0, f.sessionRepo.activeCount(user.ID))
}

func TestAuthService_VerifyTwoFactorWithTOTP(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "guarded@example.com", "correct-pw-1!")
	require.NoError(t, f.userRepo.EnableTwoFactor(ctx, user.ID, "SECRET", nil))

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "guarded@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	out, err := f.svc.VerifyTwoFactor(ctx, usecase.VerifyTwoFactorInput{
		PendingToken: login.PendingToken,
		Code:         fakeValidTOTPCode,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Tokens)
	assert.Equal(t, 1, f.sessionRepo.activeCount(user.ID))
}

func TestAuthService_VerifyTwoFactorPendingTokenSingleUse(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "guarded@example.com", "correct-pw-1!")
	require.NoError(t, f.userRepo.EnableTwoFactor(ctx, user.ID, "SECRET", nil))

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "guarded@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	_, err = f.svc.VerifyTwoFactor(ctx, usecase.VerifyTwoFactorInput{
		PendingToken: login.PendingToken,
		Code:         fakeValidTOTPCode,
	})
	require.NoError(t, err)

	_, err = f.svc.VerifyTwoFactor(ctx, usecase.VerifyTwoFactorInput{
		PendingToken: login.PendingToken,
		Code:         fakeValidTOTPCode,
	})
	assert.ErrorIs(t, err, domainerrors.ErrCodeExpired)
}

func TestAuthService_VerifyTwoFactorWrongCodeKeepsPending(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "guarded@example.com", "correct-pw-1!")
	require.NoError(t, f.userRepo.EnableTwoFactor(ctx, user.ID, "SECRET", nil))

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "guarded@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	_, err = f.svc.VerifyTwoFactor(ctx, usecase.VerifyTwoFactorInput{
		PendingToken: login.PendingToken,
		Code:         "000000",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCode)

	// A typo does not burn the pending step.
	out, err := f.svc.VerifyTwoFactor(ctx, usecase.VerifyTwoFactorInput{
		PendingToken: login.PendingToken,
		Code:         fakeValidTOTPCode,
	})
	require.NoError(t, err)
	assert.NotNil(t, out.Tokens)
}

func TestAuthService_VerifyTwoFactorWithBackupCode(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "guarded@example.com", "correct-pw-1!")
	backupHash := f.totpService.HashBackupCode("AAAA-BBBB-CCCC")
	require.NoError(t, f.userRepo.EnableTwoFactor(ctx, user.ID, "SECRET", []string{backupHash}))

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "guarded@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	out, err := f.svc.VerifyTwoFactor(ctx, usecase.VerifyTwoFactorInput{
		PendingToken: login.PendingToken,
		Code:         "AAAA-BBBB-CCCC",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Tokens)

	// The backup code is gone.
	assert.Empty(t, f.userRepo.get(user.ID).BackupCodeHashes)
}

func TestAuthService_VerifyTwoFactorExpiredPending(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "guarded@example.com", "correct-pw-1!")
	require.NoError(t, f.userRepo.EnableTwoFactor(ctx, user.ID, "SECRET", nil))

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "guarded@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(6 * time.Minute)

	_, err = f.svc.VerifyTwoFactor(ctx, usecase.VerifyTwoFactorInput{
		PendingToken: login.PendingToken,
		Code:         fakeValidTOTPCode,
	})
	assert.ErrorIs(t, err, domainerrors.ErrCodeExpired)
}

func TestAuthService_RefreshRotates(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "runner@example.com", "correct-pw-1!")

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "runner@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	out, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: login.Tokens.RefreshToken})
	require.NoError(t, err)
	require.NotNil(t, out.Tokens)
	assert.NotEqual(t, login.Tokens.RefreshToken, out.Tokens.RefreshToken)

	// Still exactly one live session.
	assert.Equal(t, 1, f.sessionRepo.activeCount(user.ID))
}

func TestAuthService_RefreshReplayRevokesEverything(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "runner@example.com", "correct-pw-1!")

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "runner@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	// A second independent session should fall with the first.
	_, err = f.svc.Login(ctx, usecase.LoginInput{Email: "runner@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: login.Tokens.RefreshToken})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: login.Tokens.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrRefreshReplayed)

	assert.Equal(t, 0, f.sessionRepo.activeCount(user.ID))
}

func TestAuthService_RefreshGarbageToken(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.Refresh(context.Background(), usecase.RefreshInput{RefreshToken: "garbage"})
	assert.ErrorIs(t, err, domainerrors.ErrRefreshInvalid)
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "runner@example.com", "correct-pw-1!")

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "runner@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.Tokens.RefreshToken))
	assert.Equal(t, 0, f.sessionRepo.activeCount(user.ID))

	// The revoked token cannot log out twice.
	assert.ErrorIs(t, f.svc.Logout(ctx, login.Tokens.RefreshToken), domainerrors.ErrRefreshInvalid)
}

func TestAuthService_LogoutAll(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "runner@example.com", "correct-pw-1!")

	for range 3 {
		_, err := f.svc.Login(ctx, usecase.LoginInput{Email: "runner@example.com", Password: "correct-pw-1!"})
		require.NoError(t, err)
	}

	revoked, err := f.svc.LogoutAll(ctx, user.PublicID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)

	revoked, err = f.svc.LogoutAll(ctx, user.PublicID)
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestAuthService_ListSessionsFlagsCurrent(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := f.seedUser(t, "runner@example.com", "correct-pw-1!")

	first, err := f.svc.Login(ctx, usecase.LoginInput{Email: "runner@example.com", Password: "correct-pw-1!", UserAgent: "phone"})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, usecase.LoginInput{Email: "runner@example.com", Password: "correct-pw-1!", UserAgent: "laptop"})
	require.NoError(t, err)

	claims, err := f.tokenService.Parse(first.Tokens.AccessToken, "access")
	require.NoError(t, err)

	sessions, err := f.svc.ListSessions(ctx, user.PublicID, claims.JTI)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	currentCount := 0
	for _, session := range sessions {
		if session.Current {
			currentCount++
			assert.Equal(t, "phone", session.UserAgent)
		}
	}
	assert.Equal(t, 1, currentCount)
}

func TestAuthService_Me(t *testing.T) {
	f := newAuthFixture()
	user := f.seedUser(t, "runner@example.com", "correct-pw-1!")

	info, err := f.svc.Me(context.Background(), user.PublicID)
	require.NoError(t, err)
	assert.Equal(t, user.PublicID, info.ID)
	assert.Equal(t, "runner@example.com", info.Email)

	_, err = f.svc.Me(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestAuthService_CleanupExpiredSessions(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.seedUser(t, "runner@example.com", "correct-pw-1!")

	_, err := f.svc.Login(ctx, usecase.LoginInput{Email: "runner@example.com", Password: "correct-pw-1!"})
	require.NoError(t, err)

	deleted, err := f.svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	f.clock.now = f.clock.now.Add(8 * 24 * time.Hour)

	deleted, err = f.svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
