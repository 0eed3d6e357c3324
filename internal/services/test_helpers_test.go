package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/tally/internal/auth"
	"github.com/BradenHooton/tally/internal/models"
	"github.com/BradenHooton/tally/internal/notify"
	pkgauth "github.com/BradenHooton/tally/pkg/auth"
	pkglogger "github.com/BradenHooton/tally/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Clock
// ============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ============================================================================
// In-memory store mirroring the SQL predicates of the repositories
// ============================================================================

type memStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	sessions map[string]*models.Session
	audit    []*models.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]*models.Account{},
		sessions: map[string]*models.Session{},
	}
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func (m *memStore) live(id string) (*models.Account, bool) {
	a, ok := m.accounts[id]
	if !ok || a.DeletedAt != nil {
		return nil, false
	}
	return a, true
}

func (m *memStore) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.DeletedAt == nil && normalizeEmail(existing.Email) == normalizeEmail(a.Email) {
			return nil, models.ErrConflict
		}
	}
	c := copyAccount(a)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.StatusPendingVerification
	}
	c.UpdatedAt = c.CreatedAt
	m.accounts[c.ID] = c
	return copyAccount(c), nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(id)
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAccount(a), nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.DeletedAt == nil && normalizeEmail(a.Email) == normalizeEmail(email) {
			return copyAccount(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) ConsumeVerificationToken(_ context.Context, digest string, now time.Time) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.DeletedAt == nil && a.EmailVerificationTokenHash != nil && *a.EmailVerificationTokenHash == digest &&
			a.EmailVerificationTokenExpires.After(now) {
			a.Status = models.StatusActive
			a.EmailVerifiedAt = timePtr(now)
			a.EmailVerificationTokenHash = nil
			a.EmailVerificationTokenExpires = nil
			a.UpdatedAt = now
			return copyAccount(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) SetVerificationToken(_ context.Context, id, digest string, expires, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(id)
	if !ok || a.Status != models.StatusPendingVerification {
		return models.ErrNotFound
	}
	a.EmailVerificationTokenHash = strPtr(digest)
	a.EmailVerificationTokenExpires = timePtr(expires)
	a.UpdatedAt = now
	return nil
}

func (m *memStore) SetPasswordResetToken(_ context.Context, id, digest string, expires, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(id)
	if !ok {
		return models.ErrNotFound
	}
	a.PasswordResetTokenHash = strPtr(digest)
	a.PasswordResetTokenExpires = timePtr(expires)
	a.UpdatedAt = now
	return nil
}

func (m *memStore) ConsumePasswordResetToken(_ context.Context, digest, passwordHash string, now time.Time) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.DeletedAt == nil && a.PasswordResetTokenHash != nil && *a.PasswordResetTokenHash == digest &&
			a.PasswordResetTokenExpires.After(now) {
			a.PasswordHash = passwordHash
			a.PasswordResetTokenHash = nil
			a.PasswordResetTokenExpires = nil
			a.RefreshTokenHash = nil
			a.RefreshTokenExpiry = nil
			a.UpdatedAt = now
			return copyAccount(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) UpdatePassword(_ context.Context, id, passwordHash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(id)
	if !ok {
		return models.ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = now
	return nil
}

func (m *memStore) UnlockExpiredSuspension(_ context.Context, id string, now time.Time) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(id)
	if !ok || a.Status != models.StatusSuspended || (a.LockedUntil != nil && a.LockedUntil.After(now)) {
		return nil, models.ErrNotFound
	}
	a.Status = models.StatusPendingVerification
	a.LockedUntil = nil
	a.LoginAttempts = 0
	a.UpdatedAt = now
	return copyAccount(a), nil
}

func (m *memStore) RecordFailedLogin(_ context.Context, id string, threshold int, lockUntil, now time.Time) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(id)
	if !ok || a.Status != models.StatusActive {
		return nil, models.ErrNotFound
	}
	if a.LoginAttempts+1 >= threshold {
		a.LoginAttempts = 0
		a.Status = models.StatusSuspended
		a.LockedUntil = timePtr(lockUntil)
	} else {
		a.LoginAttempts++
	}
	a.UpdatedAt = now
	return copyAccount(a), nil
}

func (m *memStore) stale(a *models.Account, cutoff time.Time) bool {
	return a.Status == models.StatusActive && a.DeletedAt == nil && a.LastLoginAt != nil && a.LastLoginAt.Before(cutoff)
}

func (m *memStore) DeactivateStale(_ context.Context, cutoff time.Time, accountID string, now time.Time) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Account, 0)
	for _, a := range m.accounts {
		if m.stale(a, cutoff) && (accountID == "" || a.ID == accountID) {
			a.Status = models.StatusInactive
			a.UpdatedAt = now
			out = append(out, copyAccount(a))
		}
	}
	return out, nil
}

func (m *memStore) MarkInactive(_ context.Context, id string, cutoff, now time.Time) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.DeletedAt != nil || a.Status == models.StatusInactive ||
		a.LastLoginAt == nil || !a.LastLoginAt.Before(cutoff) {
		return nil, models.ErrNotFound
	}
	a.Status = models.StatusInactive
	a.LockedUntil = nil
	a.LoginAttempts = 0
	a.UpdatedAt = now
	return copyAccount(a), nil
}

func (m *memStore) ListInactivityWarnings(_ context.Context, from, to time.Time) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Account, 0)
	for _, a := range m.accounts {
		if a.Status == models.StatusActive && a.DeletedAt == nil && a.LastLoginAt != nil &&
			a.LastLoginAt.After(from) && a.LastLoginAt.Before(to) {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastLoginAt.Before(*out[j].LastLoginAt) })
	return out, nil
}

func (m *memStore) MarkDeletedForInactivity(_ context.Context, cutoff, now time.Time) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Account, 0)
	for _, a := range m.accounts {
		if a.Status == models.StatusInactive && a.DeletedAt == nil && a.UpdatedAt.Before(cutoff) {
			a.Status = models.StatusDeleted
			a.DeletedAt = timePtr(now)
			a.UpdatedAt = now
			a.RefreshTokenHash = nil
			a.RefreshTokenExpiry = nil
			out = append(out, copyAccount(a))
		}
	}
	return out, nil
}

func (m *memStore) SoftDelete(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(id)
	if !ok {
		return models.ErrNotFound
	}
	for sid, s := range m.sessions {
		if s.AccountID == id {
			delete(m.sessions, sid)
		}
	}
	a.Status = models.StatusDeleted
	a.DeletedAt = timePtr(now)
	a.UpdatedAt = now
	a.LockedUntil = nil
	a.EmailVerificationTokenHash, a.EmailVerificationTokenExpires = nil, nil
	a.PasswordResetTokenHash, a.PasswordResetTokenExpires = nil, nil
	a.RefreshTokenHash, a.RefreshTokenExpiry = nil, nil
	return nil
}

// Session registry

func (m *memStore) GetLiveByTokenHash(_ context.Context, digest string, now time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenHash == digest && s.IsLive(now) {
			c := *s
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) ListLive(_ context.Context, accountID string, now time.Time) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Session, 0)
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.IsLive(now) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Revoke(_ context.Context, accountID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.AccountID != accountID || s.Revoked {
		return models.ErrNotFound
	}
	s.Revoked = true
	return nil
}

func (m *memStore) revokeAllLocked(accountID string) int64 {
	var n int64
	for _, s := range m.sessions {
		if s.AccountID == accountID && !s.Revoked {
			s.Revoked = true
			n++
		}
	}
	return n
}

func (m *memStore) RevokeAll(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revokeAllLocked(accountID), nil
}

func (m *memStore) insertLocked(s *models.Session) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	c := *s
	m.sessions[c.ID] = &c
}

func (m *memStore) CompleteLogin(_ context.Context, session *models.Session, refreshDigest string, refreshExpiry, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(session.AccountID)
	if !ok || a.Status != models.StatusActive {
		return models.ErrNotFound
	}
	a.LoginAttempts = 0
	a.LockedUntil = nil
	a.LastLoginAt = timePtr(now)
	a.RefreshTokenHash = strPtr(refreshDigest)
	a.RefreshTokenExpiry = timePtr(refreshExpiry)
	a.UpdatedAt = now
	m.insertLocked(session)
	return nil
}

func (m *memStore) RotateRefresh(_ context.Context, presentedDigest string, session *models.Session, newDigest string, newExpiry, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live(session.AccountID)
	if !ok {
		return models.ErrNotFound
	}
	if !a.RefreshTokenMatches(presentedDigest, now) {
		a.RefreshTokenHash = nil
		a.RefreshTokenExpiry = nil
		m.revokeAllLocked(a.ID)
		return models.ErrInvalidOrReusedToken
	}
	m.revokeAllLocked(a.ID)
	m.insertLocked(session)
	a.RefreshTokenHash = strPtr(newDigest)
	a.RefreshTokenExpiry = timePtr(newExpiry)
	a.UpdatedAt = now
	return nil
}

func (m *memStore) EndSession(_ context.Context, accountID, accessDigest string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.TokenHash == accessDigest {
			s.Revoked = true
		}
	}
	if a, ok := m.accounts[accountID]; ok {
		a.RefreshTokenHash = nil
		a.RefreshTokenExpiry = nil
		a.UpdatedAt = now
	}
	return nil
}

func (m *memStore) EndAllSessions(_ context.Context, accountID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.revokeAllLocked(accountID)
	if a, ok := m.accounts[accountID]; ok {
		a.RefreshTokenHash = nil
		a.RefreshTokenExpiry = nil
		a.UpdatedAt = now
	}
	return n, nil
}

func (m *memStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.Revoked || !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Audit log

type memAudit struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
	err     error
}

func (m *memAudit) Create(_ context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := *entry
	c.ID = uuid.NewString()
	m.entries = append(m.entries, &c)
	return &c, nil
}

func (m *memAudit) CountRecent(_ context.Context, accountID, action string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.entries {
		if e.AccountID != nil && *e.AccountID == accountID && e.Action == action && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memAudit) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// ============================================================================
// Notifier
// ============================================================================

type MockEnqueuer struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (m *MockEnqueuer) Enqueue(n notify.Notification) {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
}

func (m *MockEnqueuer) OfKind(kind notify.Kind) []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Notification, 0)
	for _, n := range m.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Last returns the most recent notification of kind
func (m *MockEnqueuer) Last(t *testing.T, kind notify.Kind) notify.Notification {
	t.Helper()
	sent := m.OfKind(kind)
	if len(sent) == 0 {
		t.Fatalf("no %s notification enqueued", kind)
	}
	return sent[len(sent)-1]
}

// MockThrottle implements EmailThrottle for testing
type MockThrottle struct {
	AllowFunc func(ctx context.Context, purpose, email string) (bool, error)
}

func (m *MockThrottle) Allow(ctx context.Context, purpose, email string) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, purpose, email)
	}
	return true, nil
}

// ============================================================================
// Harness
// ============================================================================

const testPassword = "Secret1!"

type harness struct {
	clock    *fakeClock
	store    *memStore
	audit    *memAudit
	notifier *MockEnqueuer
	tokens   *auth.TokenManager
	hasher   *pkgauth.Hasher
	logger   *slog.Logger

	auditService *AuditService
	auth         *AuthService
	sessions     *SessionService
	recon        *ReconciliationService
	gateway      *auth.Gateway
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuthPolicy() AuthPolicy {
	return AuthPolicy{
		VerificationTokenTTL:  24 * time.Hour,
		PasswordResetTokenTTL: time.Hour,
		MaxLoginAttempts:      5,
		LockoutDuration:       5 * time.Hour,
		InactivityWindow:      7 * 24 * time.Hour,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:    newFakeClock(),
		store:    newMemStore(),
		audit:    &memAudit{},
		notifier: &MockEnqueuer{},
		hasher:   pkgauth.NewHasher(bcrypt.MinCost),
		logger:   testLogger(),
	}
	h.tokens = auth.NewTokenManager("test-access-secret-0123456789", "test-refresh-secret-0123456789",
		24*time.Hour, 30*24*time.Hour).WithClock(h.clock.Now)

	h.auditService = NewAuditService(h.audit, pkglogger.NewAuditLogger(h.logger), h.logger).WithClock(h.clock.Now)
	h.auth = NewAuthService(h.store, h.store, h.tokens, h.hasher, h.notifier, h.auditService, testAuthPolicy(), h.logger).
		WithClock(h.clock.Now)
	h.sessions = NewSessionService(h.store, h.auditService, h.logger).WithClock(h.clock.Now)
	h.recon = NewReconciliationService(h.store, h.store, h.notifier, h.auditService, LifecyclePolicy{
		WarningAfter:     5 * 24 * time.Hour,
		InactivityWindow: 7 * 24 * time.Hour,
		DeletionGrace:    12 * time.Hour,
	}, h.logger).WithClock(h.clock.Now)
	h.gateway = auth.NewGateway(h.tokens, h.store, h.store, h.logger).WithClock(h.clock.Now)

	return h
}

// registerVerified registers an account and consumes its verification token
func (h *harness) registerVerified(t *testing.T, email string) *models.Account {
	t.Helper()
	ctx := context.Background()

	if _, err := h.auth.Register(ctx, "Test User", email, testPassword); err != nil {
		t.Fatalf("register: %v", err)
	}
	token := h.notifier.Last(t, notify.KindVerification).Token
	account, err := h.auth.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return account
}

func (h *harness) login(email, password string) (*LoginResult, error) {
	return h.auth.Login(context.Background(), LoginInput{
		Email:    email,
		Password: password,
		Meta:     models.SessionMeta{DeviceInfo: "test-agent", IPAddress: "203.0.113.7"},
	})
}

// account reads the stored row, including soft-deleted ones
func (h *harness) account(t *testing.T, id string) *models.Account {
	t.Helper()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	a, ok := h.store.accounts[id]
	if !ok {
		t.Fatalf("account %s not found", id)
	}
	return copyAccount(a)
}

func (h *harness) liveSessions(t *testing.T, accountID string) []*models.Session {
	t.Helper()
	sessions, err := h.store.ListLive(context.Background(), accountID, h.clock.Now())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	return sessions
}

// setAccount mutates the stored row directly
func (h *harness) setAccount(id string, mutate func(a *models.Account)) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	mutate(h.store.accounts[id])
}
