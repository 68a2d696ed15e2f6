package userauth_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	userauth "github.com/goliatone/go-userauth"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() userauth.RegisterAccountMessage {
	return userauth.RegisterAccountMessage{
		FullName: "Bob Builder",
		Username: "bob",
		Email:    "Bob@X.com ",
		Password: "hunter22",
	}
}

func TestRegistrar_Register(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	account, err := h.svc.Registrar.Register(ctx, validRegistration())
	require.NoError(t, err)

	assert.Equal(t, "bob@x.com", account.Email)
	assert.Equal(t, "bob", account.Username)
	assert.Equal(t, userauth.RoleUser, account.Role)
	assert.True(t, account.IsActive)
	assert.False(t, account.EmailVerified)
	assert.NotEqual(t, "hunter22", account.PasswordHash)
	assert.True(t, account.TimeRegistered.Equal(baseTime))

	stored, err := h.store.FindByEmail(ctx, "bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.ID)
	assert.True(t, h.hasher.Verify("hunter22", stored.PasswordHash))

	token := h.mailer.lastVerification("bob@x.com")
	require.NotEmpty(t, token, "registration must send a verification email")

	_, err = h.svc.Sessions.Login(ctx, "bob", "hunter22")
	assert.ErrorIs(t, err, userauth.ErrEmailNotVerified)

	_, err = h.svc.Verification.Consume(ctx, token)
	require.NoError(t, err)

	_, err = h.svc.Sessions.Login(ctx, "bob", "hunter22")
	assert.NoError(t, err)
}

func TestRegistrar_Duplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAccount(t, "alice", "alice@x.com", "Secr3t!", true, userauth.RoleUser)

	t.Run("email checked before username", func(t *testing.T) {
		msg := validRegistration()
		msg.Username = "alice"
		msg.Email = "ALICE@x.com"

		_, err := h.svc.Registrar.Register(ctx, msg)
		assert.ErrorIs(t, err, userauth.ErrDuplicateEmail)
	})

	t.Run("username taken", func(t *testing.T) {
		msg := validRegistration()
		msg.Username = "alice"

		_, err := h.svc.Registrar.Register(ctx, msg)
		assert.ErrorIs(t, err, userauth.ErrDuplicateUsername)
	})
}

func TestRegistrar_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		mutate func(*userauth.RegisterAccountMessage)
		field  string
	}{
		{name: "missing full name", mutate: func(m *userauth.RegisterAccountMessage) { m.FullName = "" }, field: "full_name"},
		{name: "short username", mutate: func(m *userauth.RegisterAccountMessage) { m.Username = "ab" }, field: "username"},
		{name: "bad email", mutate: func(m *userauth.RegisterAccountMessage) { m.Email = "not-an-email" }, field: "email"},
		{name: "short password", mutate: func(m *userauth.RegisterAccountMessage) { m.Password = "abc" }, field: "password"},
		{name: "unknown role", mutate: func(m *userauth.RegisterAccountMessage) { m.Role = "root" }, field: "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validRegistration()
			tt.mutate(&msg)

			_, err := h.svc.Registrar.Register(context.Background(), msg)
			require.Error(t, err)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
			assert.NotEmpty(t, richErr.ValidationErrors)
		})
	}
}

func TestRegistrar_TrustedOptions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg := validRegistration()
	msg.Role = userauth.RoleAdmin
	msg.Verified = true
	msg.UseHashid = true

	account, err := h.svc.Registrar.Register(ctx, msg)
	require.NoError(t, err)

	assert.Equal(t, userauth.RoleAdmin, account.Role)
	assert.True(t, account.EmailVerified)
	assert.Empty(t, h.mailer.lastVerification("bob@x.com"))

	want, err := hashid.NewUUID("bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, want, account.ID)

	_, err = h.svc.Sessions.Login(ctx, "bob", "hunter22")
	assert.NoError(t, err)
}

func TestRegistrar_RecordsActivity(t *testing.T) {
	h := newHarness(t)

	var events []userauth.ActivityEvent
	h.svc.Registrar.WithActivitySink(userauth.ActivitySinkFunc(func(_ context.Context, e userauth.ActivityEvent) error {
		events = append(events, e)
		return nil
	}))

	account, err := h.svc.Registrar.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, userauth.ActivityEventAccountRegistered, events[0].EventType)
	assert.Equal(t, account.ID.String(), events[0].AccountID)
	assert.Equal(t, "user", events[0].Metadata["role"])
}
