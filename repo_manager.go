package userauth

import (
	"context"
	"database/sql"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes the repositories and transactions
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Accounts() *AccountRepository
	DB() *bun.DB
}

type mngr struct {
	db       *bun.DB
	accounts *AccountRepository
}

// NewRepositoryManager creates a manager over db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return goerrors.New("repository manager requires a database", goerrors.CategoryInternal)
	}

	if m.accounts == nil {
		return goerrors.New("repository accounts should be initialized", goerrors.CategoryInternal)
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() *AccountRepository {
	return m.accounts
}

func (m mngr) DB() *bun.DB {
	return m.db
}
