package userauth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	userauth "github.com/goliatone/go-userauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAccountAdmin_List(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		h.seedAccount(t, fmt.Sprintf("user%02d", i), fmt.Sprintf("user%02d@x.com", i), "password", true, userauth.RoleUser)
		h.clock.Advance(time.Minute)
	}

	page, err := h.svc.Admin.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, userauth.DefaultListLimit)
	assert.Equal(t, "user00@x.com", page[0].Email)

	rest, err := h.svc.Admin.List(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "user10@x.com", rest[0].Email)
	assert.Equal(t, "user11@x.com", rest[1].Email)

	none, err := h.svc.Admin.List(ctx, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAccountAdmin_ListClampsArguments(t *testing.T) {
	store := new(MockAccountStore)
	store.On("List", mock.Anything, 0, userauth.MaxListLimit).Return([]*userauth.Account{}, nil).Once()
	store.On("List", mock.Anything, 0, userauth.DefaultListLimit).Return([]*userauth.Account{}, nil).Once()

	admin := userauth.NewAccountAdmin(store).WithLogger(userauth.NopLogger())

	_, err := admin.List(context.Background(), -5, 1000)
	require.NoError(t, err)
	_, err = admin.List(context.Background(), 0, -1)
	require.NoError(t, err)

	store.AssertExpectations(t)
}

func TestAccountAdmin_GetAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeded := h.seedAccount(t, "alice", "alice@x.com", "Secr3t!", true, userauth.RoleUser)

	var events []userauth.ActivityEvent
	h.svc.Admin.WithActivitySink(userauth.ActivitySinkFunc(func(_ context.Context, e userauth.ActivityEvent) error {
		events = append(events, e)
		return nil
	}))

	account, err := h.svc.Admin.Get(ctx, "ALICE@x.com")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, account.ID)

	require.NoError(t, h.svc.Admin.Delete(ctx, "alice@x.com"))

	_, err = h.svc.Admin.Get(ctx, "alice@x.com")
	assert.ErrorIs(t, err, userauth.ErrAccountNotFound)

	err = h.svc.Admin.Delete(ctx, "alice@x.com")
	assert.ErrorIs(t, err, userauth.ErrAccountNotFound)

	require.Len(t, events, 1)
	assert.Equal(t, userauth.ActivityEventAccountDeleted, events[0].EventType)
	assert.Equal(t, seeded.ID.String(), events[0].AccountID)
}

func TestAccountAdmin_DeleteRecordsActor(t *testing.T) {
	h := newHarness(t)
	admin := h.seedAccount(t, "root", "root@x.com", "Secr3t!", true, userauth.RoleAdmin)
	h.seedAccount(t, "alice", "alice@x.com", "Secr3t!", true, userauth.RoleUser)

	var events []userauth.ActivityEvent
	h.svc.Admin.WithActivitySink(userauth.ActivitySinkFunc(func(_ context.Context, e userauth.ActivityEvent) error {
		events = append(events, e)
		return nil
	}))

	ctx := userauth.WithAccount(context.Background(), admin)
	require.NoError(t, h.svc.Admin.Delete(ctx, "alice@x.com"))

	require.Len(t, events, 1)
	assert.Equal(t, admin.ID.String(), events[0].Metadata[userauth.ActivityMetadataActorID])
	assert.Equal(t, "root@x.com", events[0].Metadata["actor_email"])
}
