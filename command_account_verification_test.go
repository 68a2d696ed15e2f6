package userauth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	userauth "github.com/goliatone/go-userauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEmailVerification_Consume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAccount(t, "bob", "bob@x.com", "hunter22", false, userauth.RoleUser)

	token, err := h.svc.Verification.Issue("bob@x.com")
	require.NoError(t, err)

	res, err := h.svc.Verification.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userauth.VerificationJustVerified, res.Status)
	assert.Equal(t, "bob@x.com", res.Email)
	assert.True(t, res.Account.EmailVerified)

	again, err := h.svc.Verification.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userauth.VerificationAlreadyVerified, again.Status)

	account, err := h.store.FindByEmail(ctx, "bob@x.com")
	require.NoError(t, err)
	assert.True(t, account.EmailVerified)

	_, err = h.svc.Sessions.Login(ctx, "bob", "hunter22")
	assert.NoError(t, err)
}

func TestEmailVerification_ConsumeErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAccount(t, "bob", "bob@x.com", "hunter22", false, userauth.RoleUser)

	expired, err := h.svc.Verification.Issue("bob@x.com")
	require.NoError(t, err)

	ghost, err := h.svc.Verification.Issue("ghost@x.com")
	require.NoError(t, err)

	access, _, err := h.svc.Codec.Mint(userauth.TokenUseAccess, "bob@x.com", userauth.RoleUser, time.Hour)
	require.NoError(t, err)

	t.Run("malformed", func(t *testing.T) {
		_, err := h.svc.Verification.Consume(ctx, "not-a-token")
		assert.ErrorIs(t, err, userauth.ErrVerificationInvalid)
	})

	t.Run("access token is not a verification token", func(t *testing.T) {
		_, err := h.svc.Verification.Consume(ctx, access)
		assert.ErrorIs(t, err, userauth.ErrVerificationInvalid)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := h.svc.Verification.Consume(ctx, ghost)
		assert.ErrorIs(t, err, userauth.ErrAccountNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		h.clock.Advance(15 * time.Minute)
		_, err := h.svc.Verification.Consume(ctx, expired)
		assert.ErrorIs(t, err, userauth.ErrVerificationExpired)

		account, err := h.store.FindByEmail(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.False(t, account.EmailVerified)
	})
}

func TestEmailVerification_ConcurrentConsumeFlipsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAccount(t, "bob", "bob@x.com", "hunter22", false, userauth.RoleUser)

	token, err := h.svc.Verification.Issue("bob@x.com")
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses []userauth.VerificationStatus
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.Verification.Consume(ctx, token)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			statuses = append(statuses, res.Status)
			mu.Unlock()
		}()
	}
	wg.Wait()

	verified := 0
	for _, s := range statuses {
		if s == userauth.VerificationJustVerified {
			verified++
		}
	}
	assert.Len(t, statuses, workers)
	assert.Equal(t, 1, verified)
}

func TestEmailVerification_Resend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAccount(t, "bob", "bob@x.com", "hunter22", false, userauth.RoleUser)
	h.seedAccount(t, "alice", "alice@x.com", "Secr3t!", true, userauth.RoleUser)

	unverified, err := h.svc.Verification.Resend(ctx, "bob@x.com")
	require.NoError(t, err)
	verified, err := h.svc.Verification.Resend(ctx, "alice@x.com")
	require.NoError(t, err)
	unknown, err := h.svc.Verification.Resend(ctx, "ghost@x.com")
	require.NoError(t, err)

	assert.Equal(t, userauth.ResendVerificationMessage, unverified)
	assert.Equal(t, unverified, verified)
	assert.Equal(t, unverified, unknown)

	assert.NotEmpty(t, h.mailer.lastVerification("bob@x.com"))
	assert.Empty(t, h.mailer.lastVerification("alice@x.com"))
	assert.Empty(t, h.mailer.lastVerification("ghost@x.com"))

	res, err := h.svc.Verification.Consume(ctx, h.mailer.lastVerification("bob@x.com"))
	require.NoError(t, err)
	assert.Equal(t, userauth.VerificationJustVerified, res.Status)
}

func TestEmailVerification_DispatchFailureIsNotFatal(t *testing.T) {
	store := new(MockAccountStore)
	mailer := new(MockDispatcher)
	cfg := testConfig()

	codec, err := userauth.NewTokenCodecFromConfig(cfg)
	require.NoError(t, err)

	account := &userauth.Account{Email: "bob@x.com", Username: "bob"}
	store.On("FindByEmail", mock.Anything, "bob@x.com").Return(account, nil).Once()
	mailer.On("SendVerificationEmail", mock.Anything, "bob@x.com", mock.AnythingOfType("string")).
		Return(assert.AnError).Once()

	flow := userauth.NewEmailVerification(cfg, store, codec, mailer).WithLogger(userauth.NopLogger())

	msg, err := flow.Resend(context.Background(), "bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, userauth.ResendVerificationMessage, msg)

	store.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestEmailVerification_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Verification.Consume(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}
