package userauth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	userauth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/config"
	"github.com/goliatone/go-userauth/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

var baseTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.SigningKey = testSigningKey
	cfg.AccessTokenTTL = time.Hour
	cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	cfg.VerificationTokenTTL = 15 * time.Minute
	cfg.PasswordResetTTL = time.Hour
	return cfg
}

// recordingDispatcher keeps the last token sent per email
type recordingDispatcher struct {
	mu            sync.Mutex
	verifications map[string][]string
	resets        map[string][]string
	err           error
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		verifications: map[string][]string{},
		resets:        map[string][]string{},
	}
}

func (d *recordingDispatcher) SendVerificationEmail(_ context.Context, email, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verifications[email] = append(d.verifications[email], token)
	return d.err
}

func (d *recordingDispatcher) SendPasswordResetEmail(_ context.Context, email, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets[email] = append(d.resets[email], token)
	return d.err
}

func (d *recordingDispatcher) lastVerification(email string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	tokens := d.verifications[email]
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

func (d *recordingDispatcher) lastReset(email string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	tokens := d.resets[email]
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

func (d *recordingDispatcher) resetCount(email string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.resets[email])
}

func setupAccountRepository(t *testing.T) (*userauth.AccountRepository, func()) {
	t.Helper()

	db, err := database.OpenAndMigrate(context.Background(), database.DriverSQLite, ":memory:")
	require.NoError(t, err)

	return userauth.NewAccountRepository(db), func() {
		db.Close()
	}
}

type harness struct {
	svc    *userauth.Service
	store  *userauth.AccountRepository
	hasher *userauth.BcryptHasher
	clock  *fixedClock
	mailer *recordingDispatcher
	cfg    config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, cleanup := setupAccountRepository(t)
	t.Cleanup(cleanup)

	h := &harness{
		store:  store,
		hasher: userauth.NewBcryptHasher(bcrypt.MinCost),
		clock:  newFixedClock(baseTime),
		mailer: newRecordingDispatcher(),
		cfg:    testConfig(),
	}

	svc, err := userauth.NewService(h.cfg, userauth.Dependencies{
		Store:  store,
		Hasher: h.hasher,
		Mailer: h.mailer,
		Clock:  h.clock,
		Logger: userauth.NopLogger(),
	})
	require.NoError(t, err)
	h.svc = svc

	return h
}

func (h *harness) seedAccount(t *testing.T, username, email, password string, verified bool, role userauth.Role) *userauth.Account {
	t.Helper()

	hash, err := h.hasher.Hash(password)
	require.NoError(t, err)

	account, err := h.store.Insert(context.Background(), &userauth.Account{
		ID:             uuid.New(),
		FullName:       username + " tester",
		Username:       username,
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		IsActive:       true,
		EmailVerified:  verified,
		TimeRegistered: h.clock.Now(),
	})
	require.NoError(t, err)
	return account
}
