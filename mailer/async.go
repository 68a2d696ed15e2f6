package mailer

import (
	"context"
	"sync"
	"time"

	userauth "github.com/goliatone/go-userauth"
)

// AsyncDispatcher hands every email to a goroutine so request handlers
// never wait on SMTP. Failures are logged. Close waits for in flight
// sends.
type AsyncDispatcher struct {
	next    userauth.EmailDispatcher
	logger  userauth.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ userauth.EmailDispatcher = (*AsyncDispatcher)(nil)

func NewAsyncDispatcher(next userauth.EmailDispatcher, logger userauth.Logger) *AsyncDispatcher {
	if logger == nil {
		logger = userauth.NopLogger()
	}
	return &AsyncDispatcher{
		next:    next,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// WithTimeout bounds a single send
func (d *AsyncDispatcher) WithTimeout(timeout time.Duration) *AsyncDispatcher {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

func (d *AsyncDispatcher) SendVerificationEmail(ctx context.Context, email, token string) error {
	d.spawn(ctx, "verification", email, func(ctx context.Context) error {
		return d.next.SendVerificationEmail(ctx, email, token)
	})
	return nil
}

func (d *AsyncDispatcher) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	d.spawn(ctx, "password_reset", email, func(ctx context.Context) error {
		return d.next.SendPasswordResetEmail(ctx, email, token)
	})
	return nil
}

func (d *AsyncDispatcher) spawn(ctx context.Context, kind, email string, send func(context.Context) error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("email dropped, dispatcher closed", "kind", kind, "to", email)
		return
	}

	// the request context ends before the send does
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			d.logger.Error("async email dispatch failed", "kind", kind, "to", email, "error", err)
			return
		}
		d.logger.Debug("email sent", "kind", kind, "to", email)
	}()
}

// Close stops accepting emails and waits for pending sends or ctx.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
