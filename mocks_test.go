package userauth_test

import (
	"context"
	"time"

	userauth "github.com/goliatone/go-userauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAccountStore implements userauth.AccountStore
type MockAccountStore struct {
	mock.Mock
}

var _ userauth.AccountStore = (*MockAccountStore)(nil)

func accountArg(args mock.Arguments, i int) *userauth.Account {
	if v, ok := args.Get(i).(*userauth.Account); ok {
		return v
	}
	return nil
}

func (m *MockAccountStore) FindByEmail(ctx context.Context, email string) (*userauth.Account, error) {
	args := m.Called(ctx, email)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccountStore) FindByUsername(ctx context.Context, username string) (*userauth.Account, error) {
	args := m.Called(ctx, username)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccountStore) FindByResetToken(ctx context.Context, token string) (*userauth.Account, error) {
	args := m.Called(ctx, token)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccountStore) List(ctx context.Context, skip, limit int) ([]*userauth.Account, error) {
	args := m.Called(ctx, skip, limit)
	accounts, _ := args.Get(0).([]*userauth.Account)
	return accounts, args.Error(1)
}

func (m *MockAccountStore) Insert(ctx context.Context, account *userauth.Account) (*userauth.Account, error) {
	args := m.Called(ctx, account)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccountStore) Update(ctx context.Context, account *userauth.Account) (*userauth.Account, error) {
	args := m.Called(ctx, account)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccountStore) Delete(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAccountStore) MarkEmailVerified(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error {
	args := m.Called(ctx, id, token, expiry)
	return args.Error(0)
}

func (m *MockAccountStore) ClearResetToken(ctx context.Context, id uuid.UUID, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *MockAccountStore) CompleteReset(ctx context.Context, id uuid.UUID, token, passwordHash string) error {
	args := m.Called(ctx, id, token, passwordHash)
	return args.Error(0)
}

// MockDispatcher implements userauth.EmailDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendVerificationEmail(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

func (m *MockDispatcher) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}
