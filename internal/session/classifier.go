package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nhle/todosync/internal/api"
)

// Verdict is the outcome of classifying a failure.
type Verdict struct {
	// SessionExpired is true iff the failure was HTTP 401 or envelope
	// code 40101.
	SessionExpired bool
	// Stale is true when the failure belongs to a session that has since
	// been replaced; its result must be discarded and nothing else done.
	Stale bool
	// Message is the text to surface to the user.
	Message string
}

// Messages surfaced for each failure kind.
const (
	MessageSessionExpired = "session expired, please sign in again"
	MessageUnreachable    = "backend unreachable, check that the service is running"
)

// Classifier decides whether a failure is transient or means the session
// has expired. On expiry it invalidates the Store and notifies the
// registered listeners once per session.
type Classifier struct {
	store  *Store
	logger *slog.Logger

	mu          sync.Mutex
	listeners   []func()
	handled     bool
	handledUpTo uint64
}

// NewClassifier returns a Classifier bound to store.
func NewClassifier(store *Store, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{store: store, logger: logger}
}

// OnExpired registers fn to run when a session is found to have expired.
// Listeners run synchronously in registration order.
func (c *Classifier) OnExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Classify inspects err. A nil err yields the zero Verdict.
func (c *Classifier) Classify(err error) Verdict {
	if err == nil {
		return Verdict{}
	}
	if errors.Is(err, context.Canceled) {
		return Verdict{Message: "request canceled"}
	}

	apiErr, ok := api.AsError(err)
	if !ok {
		return Verdict{Message: err.Error()}
	}

	switch apiErr.Kind {
	case api.KindAuthExpired:
		return c.expired(apiErr)
	case api.KindTransport:
		return Verdict{Message: MessageUnreachable}
	default:
		return Verdict{Message: apiErr.Message}
	}
}

func (c *Classifier) expired(apiErr *api.Error) Verdict {
	// The gateway has normally cleared the credential already; this is a
	// no-op then, and also a no-op when a newer session is live.
	c.store.InvalidateEpoch(apiErr.Epoch)

	if c.store.Valid() && c.store.Epoch() > apiErr.Epoch {
		c.logger.Debug("discarding auth failure from superseded session",
			"path", apiErr.Path, "epoch", apiErr.Epoch)
		return Verdict{SessionExpired: true, Stale: true}
	}

	c.mu.Lock()
	if c.handled && apiErr.Epoch <= c.handledUpTo {
		c.mu.Unlock()
		return Verdict{SessionExpired: true, Message: MessageSessionExpired}
	}
	c.handled = true
	c.handledUpTo = c.store.Epoch()
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()

	c.logger.Info("session expired", "path", apiErr.Path, "code", apiErr.Code)
	for _, fn := range listeners {
		fn()
	}
	return Verdict{SessionExpired: true, Message: MessageSessionExpired}
}
