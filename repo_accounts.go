package userauth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations
const pgUniqueViolation = "23505"

// AccountRepository is the bun backed AccountStore. Every mutation is a
// single statement or runs inside a transaction.
type AccountRepository struct {
	db *bun.DB
}

var _ AccountStore = (*AccountRepository)(nil)

// NewAccountRepository creates an AccountRepository
func NewAccountRepository(db *bun.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.FindByEmailTx(ctx, r.db, email)
}

func (r *AccountRepository) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return r.findOneTx(ctx, tx, "email", NormalizeEmail(email))
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return r.FindByUsernameTx(ctx, r.db, username)
}

func (r *AccountRepository) FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return r.findOneTx(ctx, tx, "username", strings.TrimSpace(username))
}

func (r *AccountRepository) FindByResetToken(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrAccountNotFound
	}
	return r.findOneTx(ctx, r.db, "password_reset_token", token)
}

func (r *AccountRepository) findOneTx(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	if value == "" {
		return nil, ErrAccountNotFound
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError(err, "failed to query account by "+column)
	}
	return record, nil
}

// List returns accounts ordered by registration time
func (r *AccountRepository) List(ctx context.Context, skip, limit int) ([]*Account, error) {
	var records []*Account
	err := r.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.time_registered ASC, ?TableAlias.email ASC").
		Offset(skip).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list accounts")
	}
	return records, nil
}

// Insert stores account after checking email, then username, for
// duplicates inside one transaction.
func (r *AccountRepository) Insert(ctx context.Context, account *Account) (*Account, error) {
	var created *Account
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = r.InsertTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *AccountRepository) InsertTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)

	if _, err := r.FindByEmailTx(ctx, tx, account.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !goerrors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	if _, err := r.FindByUsernameTx(ctx, tx, account.Username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !goerrors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	if _, err := tx.NewInsert().Model(account).Exec(ctx); err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, storeError(err, "failed to insert account")
	}

	return account, nil
}

// Update writes every column of account by primary key
func (r *AccountRepository) Update(ctx context.Context, account *Account) (*Account, error) {
	return r.UpdateTx(ctx, r.db, account)
}

func (r *AccountRepository) UpdateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	account.Email = NormalizeEmail(account.Email)
	res, err := tx.NewUpdate().Model(account).WherePK().Exec(ctx)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, storeError(err, "failed to update account")
	}
	if !affected(res) {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// Delete removes the account registered with email
func (r *AccountRepository) Delete(ctx context.Context, email string) error {
	return r.DeleteTx(ctx, r.db, email)
}

func (r *AccountRepository) DeleteTx(ctx context.Context, tx bun.IDB, email string) error {
	res, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("email = ?", NormalizeEmail(email)).
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to delete account")
	}
	if !affected(res) {
		return ErrAccountNotFound
	}
	return nil
}

// MarkEmailVerified flips email_verified with a conditional update so
// concurrent callers see exactly one true.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)

	res, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("email_verified = ?", true).
		Where("email = ?", email).
		Where("email_verified = ?", false).
		Exec(ctx)
	if err != nil {
		return false, storeError(err, "failed to mark email verified")
	}

	if affected(res) {
		return true, nil
	}

	exists, err := r.db.NewSelect().
		Model((*Account)(nil)).
		Where("email = ?", email).
		Exists(ctx)
	if err != nil {
		return false, storeError(err, "failed to query account by email")
	}
	if !exists {
		return false, ErrAccountNotFound
	}
	return false, nil
}

// SetResetToken stores token and expiry together, replacing any
// pending reset.
func (r *AccountRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error {
	expiry = expiry.UTC()
	res, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("password_reset_token = ?", token).
		Set("password_reset_token_expiry = ?", expiry).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to store reset token")
	}
	if !affected(res) {
		return ErrAccountNotFound
	}
	return nil
}

// ClearResetToken removes token and expiry when token is still current
func (r *AccountRepository) ClearResetToken(ctx context.Context, id uuid.UUID, token string) error {
	_, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("password_reset_token = NULL").
		Set("password_reset_token_expiry = NULL").
		Where("id = ?", id).
		Where("password_reset_token = ?", token).
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to clear reset token")
	}
	return nil
}

// CompleteReset swaps the password hash and clears the reset fields in
// one statement guarded by the token, so a token wins at most once.
func (r *AccountRepository) CompleteReset(ctx context.Context, id uuid.UUID, token, passwordHash string) error {
	res, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("password_reset_token = NULL").
		Set("password_reset_token_expiry = NULL").
		Where("id = ?", id).
		Where("password_reset_token = ?", token).
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to complete password reset")
	}
	if !affected(res) {
		return ErrResetTokenInvalid
	}
	return nil
}

func prepareAccountDefaults(account *Account) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.Role == "" {
		account.Role = RoleUser
	}
	if account.TimeRegistered.IsZero() {
		account.TimeRegistered = time.Now().UTC()
	}
	account.Email = NormalizeEmail(account.Email)
	account.Username = strings.TrimSpace(account.Username)
}

func affected(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

// duplicateError maps unique constraint failures from sqlite and
// postgres to the duplicate sentinels.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "username") {
			return ErrDuplicateUsername
		}
		return ErrDuplicateEmail
	}

	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique") {
		return nil
	}
	switch {
	case strings.Contains(msg, "accounts.email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "accounts.username"):
		return ErrDuplicateUsername
	}
	return nil
}
