// Package seed creates accounts outside the HTTP flows: single users,
// the initial admin and CSV imports.
package seed

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	userauth "github.com/goliatone/go-userauth"
)

// User describes an account to create. Seeded accounts skip the
// verification email.
type User struct {
	FullName  string
	Username  string
	Email     string
	Password  string
	Role      userauth.Role
	Active    bool
	Verified  bool
	UseHashid bool
}

// ImportResult counts what a CSV import did
type ImportResult struct {
	Created int
	Updated int
	Skipped int
}

type Seeder struct {
	store     userauth.AccountStore
	hasher    userauth.PasswordHasher
	registrar *userauth.Registrar
	logger    userauth.Logger
}

func New(store userauth.AccountStore, hasher userauth.PasswordHasher) *Seeder {
	if hasher == nil {
		hasher = userauth.NewBcryptHasher()
	}
	return &Seeder{
		store:     store,
		hasher:    hasher,
		registrar: userauth.NewRegistrar(store, hasher, nil).WithLogger(userauth.NopLogger()),
		logger:    userauth.NopLogger(),
	}
}

func (s *Seeder) WithLogger(logger userauth.Logger) *Seeder {
	if logger != nil {
		s.logger = logger
		s.registrar.WithLogger(logger)
	}
	return s
}

// Exists reports whether an account with email is stored
func (s *Seeder) Exists(ctx context.Context, email string) (bool, error) {
	_, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if goerrors.Is(err, userauth.ErrAccountNotFound) {
		return false, nil
	}
	return false, err
}

// AddUser validates and stores u. Email and username must be unused.
func (s *Seeder) AddUser(ctx context.Context, u User) (*userauth.Account, error) {
	account, err := s.registrar.Register(ctx, userauth.RegisterAccountMessage{
		FullName:  u.FullName,
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.Password,
		Role:      u.Role,
		Verified:  u.Verified,
		UseHashid: u.UseHashid,
	})
	if err != nil {
		return nil, err
	}

	if !u.Active {
		account.IsActive = false
		return s.store.Update(ctx, account)
	}
	return account, nil
}

// SeedAdmin creates an active, verified admin. An existing account with
// the same email is left alone unless overwrite is set, in which case
// its names, password and flags are replaced. The bool result reports
// whether anything was written.
func (s *Seeder) SeedAdmin(ctx context.Context, u User, overwrite bool) (*userauth.Account, bool, error) {
	u.Role = userauth.RoleAdmin
	u.Active = true
	u.Verified = true

	existing, err := s.store.FindByEmail(ctx, u.Email)
	switch {
	case err == nil && !overwrite:
		return existing, false, nil
	case err == nil:
		account, err := s.overwrite(ctx, existing, u)
		return account, err == nil, err
	case goerrors.Is(err, userauth.ErrAccountNotFound):
		account, err := s.AddUser(ctx, u)
		return account, err == nil, err
	default:
		return nil, false, err
	}
}

// ImportCSV reads accounts from r. The header row names the columns:
// full_name, user_name (or username), email and password are required,
// role and is_active are optional. Rows whose email or username is taken
// are skipped when skipExisting is set, otherwise a row matching by email
// overwrites that account. Invalid rows are logged and skipped.
func (s *Seeder) ImportCSV(ctx context.Context, r io.Reader, skipExisting bool) (ImportResult, error) {
	result := ImportResult{}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return result, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read csv header")
	}

	columns := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "username" {
			name = "user_name"
		}
		columns[name] = i
	}

	for _, required := range []string{"full_name", "user_name", "email", "password"} {
		if _, ok := columns[required]; !ok {
			return result, goerrors.New("csv is missing column "+required, goerrors.CategoryBadInput).
				WithCode(goerrors.CodeBadRequest)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return result, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read csv row "+strconv.Itoa(line))
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		u := User{
			FullName: field("full_name"),
			Username: field("user_name"),
			Email:    field("email"),
			Password: field("password"),
			Role:     userauth.RoleUser,
			Active:   parseActive(field("is_active")),
			Verified: true,
		}

		if raw := field("role"); raw != "" {
			role, ok := userauth.ParseRole(raw)
			if !ok {
				s.logger.Warn("invalid role, row skipped", "line", line, "email", u.Email, "role", raw)
				result.Skipped++
				continue
			}
			u.Role = role
		}

		byEmail, emailErr := s.lookup(ctx, s.store.FindByEmail, u.Email)
		if emailErr != nil {
			return result, emailErr
		}
		byUsername, usernameErr := s.lookup(ctx, s.store.FindByUsername, u.Username)
		if usernameErr != nil {
			return result, usernameErr
		}

		if (byEmail != nil || byUsername != nil) && skipExisting {
			result.Skipped++
			continue
		}

		if byEmail != nil {
			if _, err := s.overwrite(ctx, byEmail, u); err != nil {
				s.logger.Warn("row update failed, skipped", "line", line, "email", u.Email, "error", err)
				result.Skipped++
				continue
			}
			result.Updated++
			continue
		}

		if _, err := s.AddUser(ctx, u); err != nil {
			s.logger.Warn("row insert failed, skipped", "line", line, "email", u.Email, "error", err)
			result.Skipped++
			continue
		}
		result.Created++
	}

	return result, nil
}

func (s *Seeder) overwrite(ctx context.Context, account *userauth.Account, u User) (*userauth.Account, error) {
	hash, err := s.hasher.Hash(u.Password)
	if err != nil {
		return nil, err
	}

	if u.FullName != "" {
		account.FullName = u.FullName
	}
	if u.Username != "" {
		account.Username = u.Username
	}
	account.PasswordHash = hash
	// a reset link issued before the overwrite must not replace the new password
	account.PasswordResetToken = nil
	account.PasswordResetTokenExpiry = nil
	account.Role = u.Role
	account.IsActive = u.Active
	account.EmailVerified = account.EmailVerified || u.Verified

	return s.store.Update(ctx, account)
}

func (s *Seeder) lookup(ctx context.Context, find func(context.Context, string) (*userauth.Account, error), key string) (*userauth.Account, error) {
	if key == "" {
		return nil, nil
	}
	account, err := find(ctx, key)
	if err != nil {
		if goerrors.Is(err, userauth.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

func parseActive(raw string) bool {
	switch strings.ToLower(raw) {
	case "", "true", "1", "yes", "y":
		return true
	default:
		return false
	}
}
