package userauth

import (
	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost. Out of range values fall
// back to the package default.
func NewBcryptHasher(cost ...int) *BcryptHasher {
	c := passwordHashCost()
	if len(cost) > 0 && cost[0] >= bcrypt.MinCost && cost[0] <= bcrypt.MaxCost {
		c = cost[0]
	}
	return &BcryptHasher{cost: c}
}

// Hash will generate a salted password hash
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", errors.New("password must be at most 72 bytes", errors.CategoryValidation).
				WithCode(errors.CodeBadRequest)
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}
	return string(out), nil
}

// Verify will check the cleartext password against hash. A malformed
// hash is a non-match.
func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
