package userauth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(6, 72),
}

// RegisterAccountMessage is the registration payload
type RegisterAccountMessage struct {
	FullName string `json:"full_name" form:"full_name"`
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	// Role defaults to RoleUser. Only trusted callers should set it.
	Role Role `json:"-" form:"-"`
	// Verified skips the verification email. Used by seeding tools.
	Verified bool `json:"-" form:"-"`
	// UseHashid derives the account id from the email
	UseHashid bool `json:"-" form:"-"`
}

func (m RegisterAccountMessage) Type() string { return "account.register" }

// Validate checks the registration payload
func (m RegisterAccountMessage) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.FullName, validation.Required, validation.Length(1, 120)),
			validation.Field(&m.Username, validation.Required, validation.Length(3, 50)),
			validation.Field(&m.Email, validation.Required, is.EmailFormat),
			validation.Field(&m.Password, passwordRules...),
			validation.Field(&m.Role, validation.By(func(value any) error {
				role, _ := value.(Role)
				if role != "" && !role.IsValid() {
					return validation.NewError("validation_invalid_role", "must be a valid role")
				}
				return nil
			})),
		)
	}, "invalid registration payload"); err != nil {
		return err
	}
	return nil
}

// Registrar creates accounts and starts email verification
type Registrar struct {
	store        AccountStore
	hasher       PasswordHasher
	verification *EmailVerification
	clock        Clock
	logger       Logger
	activity     ActivitySink
	timeout      time.Duration
}

// NewRegistrar creates a Registrar
func NewRegistrar(store AccountStore, hasher PasswordHasher, verification *EmailVerification) *Registrar {
	return &Registrar{
		store:        store,
		hasher:       hasher,
		verification: verification,
		clock:        SystemClock,
		logger:       defLogger{},
		activity:     noopActivitySink{},
		timeout:      10 * time.Second,
	}
}

// WithClock sets the time source for registration timestamps
func (r *Registrar) WithClock(clock Clock) *Registrar {
	r.clock = resolveClock(clock)
	return r
}

// WithLogger sets the logger
func (r *Registrar) WithLogger(logger Logger) *Registrar {
	r.logger = resolveLogger(logger)
	return r
}

// WithActivitySink sets the sink receiving registration events
func (r *Registrar) WithActivitySink(sink ActivitySink) *Registrar {
	r.activity = normalizeActivitySink(sink)
	return r
}

// Register validates msg, stores a new unverified account and sends the
// verification email. Email uniqueness is checked before username.
func (r *Registrar) Register(ctx context.Context, msg RegisterAccountMessage) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account registration")
	default:
		return r.register(ctx, msg)
	}
}

func (r *Registrar) register(ctx context.Context, msg RegisterAccountMessage) (*Account, error) {
	msg.Email = NormalizeEmail(msg.Email)
	msg.Username = strings.TrimSpace(msg.Username)
	msg.FullName = strings.TrimSpace(msg.FullName)

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	hash, err := r.hasher.Hash(msg.Password)
	if err != nil {
		return nil, err
	}

	role := msg.Role
	if role == "" {
		role = RoleUser
	}

	account := &Account{
		ID:             uuid.New(),
		FullName:       msg.FullName,
		Username:       msg.Username,
		Email:          msg.Email,
		PasswordHash:   hash,
		Role:           role,
		IsActive:       true,
		EmailVerified:  msg.Verified,
		TimeRegistered: r.clock.Now().UTC(),
	}

	if msg.UseHashid {
		if id, err := hashid.NewUUID(msg.Email); err == nil {
			account.ID = id
		}
	}

	created, err := r.store.Insert(ctx, account)
	if err != nil {
		if goerrors.Is(err, ErrDuplicateEmail) || goerrors.Is(err, ErrDuplicateUsername) {
			return nil, err
		}
		r.logger.Error("account insert failed", "email", msg.Email, "error", err)
		return nil, storeError(err, "could not create account")
	}

	if !created.EmailVerified && r.verification != nil {
		if err := r.verification.Send(ctx, created.Email); err != nil {
			r.logger.Error("failed to issue verification token", "email", created.Email, "error", err)
		}
	}

	recordActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType:  ActivityEventAccountRegistered,
		AccountID:  created.ID.String(),
		Email:      created.Email,
		Metadata:   map[string]any{"role": string(created.Role)},
		OccurredAt: r.clock.Now(),
	})

	return created, nil
}
