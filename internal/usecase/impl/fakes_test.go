package impl

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"athfed/internal/domain/entity"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/domain/repository"
	"athfed/internal/domain/service"
)

// The fakes below stand in for the persistence and infra layers so the
// services can be exercised without a database or key-value backend.

// --- clock ---

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// --- user repository ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.PublicID == uuid.Nil {
		user.PublicID = uuid.New()
	}
	user.CreatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone

	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.users[id]; ok {
		clone := *user

		return &clone, nil
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) FindByPublicID(_ context.Context, publicID uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.PublicID == publicID {
			clone := *user

			return &clone, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	normalized := entity.NormalizeEmail(email)
	for _, user := range r.users {
		if user.Email == normalized {
			clone := *user

			return &clone, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hash

	return nil
}

func (r *fakeUserRepo) SetEmailVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsEmailVerified = true

	return nil
}

func (r *fakeUserRepo) EnableTwoFactor(_ context.Context, id uuid.UUID, secret string, backupCodeHashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.TwoFactorEnabled = true
	user.TwoFactorSecret = secret
	user.BackupCodeHashes = append([]string(nil), backupCodeHashes...)

	return nil
}

func (r *fakeUserRepo) DisableTwoFactor(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	user.BackupCodeHashes = nil

	return nil
}

func (r *fakeUserRepo) ConsumeBackupCode(_ context.Context, id uuid.UUID, codeHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	for i, hash := range user.BackupCodeHashes {
		if hash == codeHash {
			user.BackupCodeHashes = append(user.BackupCodeHashes[:i], user.BackupCodeHashes[i+1:]...)

			return true, nil
		}
	}

	return false, nil
}

// get returns the stored user for assertions.
func (r *fakeUserRepo) get(id uuid.UUID) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.users[id]; ok {
		clone := *user

		return &clone
	}

	return nil
}

// --- refresh session repository ---

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.RefreshSession // keyed by refresh jti
	now      func() time.Time
}

func newFakeSessionRepo(now func() time.Time) *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[uuid.UUID]*entity.RefreshSession),
		now:      now,
	}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = entity.SessionActive
	}
	clone := *session
	r.sessions[session.RefreshJTI] = &clone

	return nil
}

func (r *fakeSessionRepo) FindActiveByRefreshJTI(_ context.Context, jti uuid.UUID) (*entity.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[jti]
	if !ok || session.Status != entity.SessionActive {
		return nil, repository.ErrSessionNotFound
	}
	if !session.ExpiresAt.After(r.now()) {
		return nil, repository.ErrSessionExpired
	}
	clone := *session

	return &clone, nil
}

func (r *fakeSessionRepo) FindActiveByUserID(_ context.Context, userID uuid.UUID) ([]*entity.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.RefreshSession
	for _, session := range r.sessions {
		if session.UserID == userID && session.Status == entity.SessionActive && session.ExpiresAt.After(r.now()) {
			clone := *session
			out = append(out, &clone)
		}
	}

	return out, nil
}

func (r *fakeSessionRepo) Rotate(_ context.Context, input repository.RotateInput) (*entity.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[input.OldRefreshJTI]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if current.Status != entity.SessionActive {
		return nil, repository.ErrSessionReplayed
	}
	if !current.ExpiresAt.After(r.now()) {
		return nil, repository.ErrSessionExpired
	}

	now := r.now()
	current.Status = entity.SessionRevoked
	current.RevokedAt = &now

	replacement := &entity.RefreshSession{
		ID:         uuid.New(),
		UserID:     current.UserID,
		AccessJTI:  input.NewAccessJTI,
		RefreshJTI: input.NewRefreshJTI,
		Status:     entity.SessionActive,
		UserAgent:  input.UserAgent,
		IssuedAt:   now,
		ExpiresAt:  input.NewExpiresAt,
	}
	r.sessions[input.NewRefreshJTI] = replacement
	clone := *replacement

	return &clone, nil
}

func (r *fakeSessionRepo) RevokeByRefreshJTI(_ context.Context, jti uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[jti]
	if !ok || session.Status != entity.SessionActive {
		return repository.ErrSessionNotFound
	}
	now := r.now()
	session.Status = entity.SessionRevoked
	session.RevokedAt = &now

	return nil
}

func (r *fakeSessionRepo) RevokeAllByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	now := r.now()
	for _, session := range r.sessions {
		if session.UserID == userID && session.Status == entity.SessionActive {
			session.Status = entity.SessionRevoked
			session.RevokedAt = &now
			count++
		}
	}

	return count, nil
}

func (r *fakeSessionRepo) RevokeAllByUserIDExcept(_ context.Context, userID uuid.UUID, keepRefreshJTI uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	now := r.now()
	for jti, session := range r.sessions {
		if jti == keepRefreshJTI {
			continue
		}
		if session.UserID == userID && session.Status == entity.SessionActive {
			session.Status = entity.SessionRevoked
			session.RevokedAt = &now
			count++
		}
	}

	return count, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for jti, session := range r.sessions {
		if !session.ExpiresAt.After(r.now()) {
			delete(r.sessions, jti)
			count++
		}
	}

	return count, nil
}

func (r *fakeSessionRepo) activeCount(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, session := range r.sessions {
		if session.UserID == userID && session.Status == entity.SessionActive {
			count++
		}
	}

	return count
}

// --- transaction manager ---

type fakeTxManager struct {
	userRepo    *fakeUserRepo
	sessionRepo *fakeSessionRepo
}

func (m *fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(m)
}

func (m *fakeTxManager) UserRepo() repository.UserRepository {
	return m.userRepo
}

func (m *fakeTxManager) SessionRepo() repository.RefreshSessionRepository {
	return m.sessionRepo
}

// --- password hasher ---

type fakeHasher struct {
	mu               sync.Mutex
	dummyVerifyCalls int
	// weakHashes marks hashes that report needsRehash on verify.
	weakHashes map[string]bool
}

func newFakeHasher() *fakeHasher {
	return &fakeHasher{weakHashes: make(map[string]bool)}
}

func (h *fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(password, encodedHash string) (bool, bool, error) {
	h.mu.Lock()
	needsRehash := h.weakHashes[encodedHash]
	h.mu.Unlock()

	return encodedHash == "hashed:"+password || encodedHash == "weak:"+password, needsRehash, nil
}

func (h *fakeHasher) DummyVerify(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dummyVerifyCalls++
}

func (h *fakeHasher) ValidatePasswordStrength(password string) error {
	if strings.HasPrefix(password, "weak") {
		return domainerrors.ErrWeakPassword
	}

	return nil
}

func (h *fakeHasher) markWeak(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.weakHashes[hash] = true
}

// --- token service ---

type issuedToken struct {
	claims service.TokenClaims
}

type fakeTokenService struct {
	mu     sync.Mutex
	clock  *fakeClock
	ttls   map[service.TokenType]time.Duration
	tokens map[string]issuedToken
	serial int
}

func newFakeTokenService(clock *fakeClock) *fakeTokenService {
	return &fakeTokenService{
		clock: clock,
		ttls: map[service.TokenType]time.Duration{
			service.TokenAccess:             15 * time.Minute,
			service.TokenRefresh:            7 * 24 * time.Hour,
			service.TokenPendingTwoFactor:   5 * time.Minute,
			service.TokenResetAuthorization: 10 * time.Minute,
		},
		tokens: make(map[string]issuedToken),
	}
}

func (s *fakeTokenService) Generate(user *entity.User, tokenType service.TokenType) (string, uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.serial++
	jti := uuid.New()
	token := string(tokenType) + "-" + jti.String()
	now := s.clock.Now()
	s.tokens[token] = issuedToken{claims: service.TokenClaims{
		UserID:    user.PublicID,
		Role:      user.Role,
		Type:      tokenType,
		JTI:       jti,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttls[tokenType]),
	}}

	return token, jti, nil
}

func (s *fakeTokenService) Parse(token string, expected service.TokenType) (*service.TokenClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issued, ok := s.tokens[token]
	if !ok {
		return nil, service.ErrTokenMalformed
	}
	if issued.claims.Type != expected {
		return nil, service.ErrTokenWrongType
	}
	if s.clock.Now().After(issued.claims.ExpiresAt) {
		return nil, service.ErrTokenExpired
	}
	claims := issued.claims

	return &claims, nil
}

func (s *fakeTokenService) TTL(tokenType service.TokenType) time.Duration {
	return s.ttls[tokenType]
}

// --- totp service ---

const fakeValidTOTPCode = "246810"

type fakeTOTPService struct {
	secretSerial int
	mu           sync.Mutex
}

func (s *fakeTOTPService) GenerateSecret() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secretSerial++

	return "SECRET" + strings.Repeat("A", s.secretSerial), nil
}

func (s *fakeTOTPService) Provision(secret, accountLabel string) (*service.TOTPProvision, error) {
	return &service.TOTPProvision{
		Secret: secret,
		URI:    "otpauth://totp/test:" + accountLabel,
		QRCode: "data:image/png;base64,dGVzdA==",
	}, nil
}

func (s *fakeTOTPService) Verify(secret, code string, _ time.Time) (bool, error) {
	return secret != "" && code == fakeValidTOTPCode, nil
}

func (s *fakeTOTPService) GenerateBackupCodes() ([]string, []string, error) {
	codes := []string{"AAAA-BBBB-CCCC", "DDDD-EEEE-FFFF"}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = s.HashBackupCode(code)
	}

	return codes, hashes, nil
}

func (s *fakeTOTPService) HashBackupCode(code string) string {
	return "bh:" + strings.ToUpper(strings.TrimSpace(code))
}

// --- two-factor store ---

type fakeTwoFactorStore struct {
	mu           sync.Mutex
	setupSecrets map[string]string
	pending      map[string]bool
}

func newFakeTwoFactorStore() *fakeTwoFactorStore {
	return &fakeTwoFactorStore{
		setupSecrets: make(map[string]string),
		pending:      make(map[string]bool),
	}
}

func (s *fakeTwoFactorStore) SaveSetupSecret(_ context.Context, userID, secret string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setupSecrets[userID] = secret

	return nil
}

func (s *fakeTwoFactorStore) TakeSetupSecret(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret := s.setupSecrets[userID]
	delete(s.setupSecrets, userID)

	return secret, nil
}

func (s *fakeTwoFactorStore) SavePendingLogin(_ context.Context, jti string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[jti] = true

	return nil
}

func (s *fakeTwoFactorStore) ConsumePendingLogin(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending[jti] {
		return false, nil
	}
	delete(s.pending, jti)

	return true, nil
}

// --- challenge store ---

type fakeChallenge struct {
	code     string
	attempts int
}

type fakeChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*fakeChallenge
	nextCode   string
	issued     int
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{
		challenges: make(map[string]*fakeChallenge),
		nextCode:   "135790",
	}
}

func (s *fakeChallengeStore) challengeKey(purpose service.ChallengePurpose, email string) string {
	return string(purpose) + ":" + entity.NormalizeEmail(email)
}

func (s *fakeChallengeStore) Issue(_ context.Context, purpose service.ChallengePurpose, email string) (string, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issued++
	s.challenges[s.challengeKey(purpose, email)] = &fakeChallenge{code: s.nextCode}

	return s.nextCode, 10 * time.Minute, nil
}

func (s *fakeChallengeStore) check(purpose service.ChallengePurpose, email, code string, destroy bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.challengeKey(purpose, email)
	challenge, ok := s.challenges[key]
	if !ok {
		return service.ErrChallengeExpired
	}
	if challenge.attempts >= 5 {
		delete(s.challenges, key)

		return service.ErrChallengeLockedOut
	}
	if challenge.code != code {
		challenge.attempts++

		return service.ErrChallengeInvalid
	}
	if destroy {
		delete(s.challenges, key)
	}

	return nil
}

func (s *fakeChallengeStore) Validate(_ context.Context, purpose service.ChallengePurpose, email, code string) error {
	return s.check(purpose, email, code, false)
}

func (s *fakeChallengeStore) Consume(_ context.Context, purpose service.ChallengePurpose, email, code string) error {
	return s.check(purpose, email, code, true)
}

func (s *fakeChallengeStore) Revoke(_ context.Context, purpose service.ChallengePurpose, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, s.challengeKey(purpose, email))

	return nil
}

func (s *fakeChallengeStore) Status(_ context.Context, purpose service.ChallengePurpose, email string) (*service.ChallengeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[s.challengeKey(purpose, email)]; ok {
		return &service.ChallengeStatus{Exists: true, RemainingTTL: 5 * time.Minute}, nil
	}

	return &service.ChallengeStatus{}, nil
}

// --- email notifier ---

type sentMail struct {
	kind  string
	email string
	code  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *fakeNotifier) SendVerificationCode(_ context.Context, email, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "verify", email: email, code: code})

	return nil
}

func (n *fakeNotifier) SendPasswordResetCode(_ context.Context, email, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "reset", email: email, code: code})

	return nil
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.sent)
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
