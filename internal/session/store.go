package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
)

// TokenKey is the fixed vault key the bearer token is persisted under.
const TokenKey = "todo_token"

// ErrNoSession is returned when an operation needs a session and none is
// established.
var ErrNoSession = errors.New("session: no active session")

// TokenVault is durable storage for the bearer token.
type TokenVault interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store owns the bearer credential. At most one token is active at a
// time. Every establish or effective invalidate advances the epoch, so
// work started under one session can tell that the session has since
// changed.
type Store struct {
	vault  TokenVault
	logger *slog.Logger

	mu    sync.RWMutex
	token string
	user  *model.User
	epoch uint64
}

// NewStore returns a Store that persists through vault, loading any token
// a previous run left behind.
func NewStore(vault TokenVault, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{vault: vault, logger: logger}

	token, err := vault.Get(TokenKey)
	switch {
	case err == nil:
		s.token = token
	case errors.Is(err, credential.ErrNotFound):
	default:
		logger.Warn("loading persisted token", "error", err)
	}
	return s
}

// Token returns the current token, if any.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Snapshot returns the current token together with the epoch it belongs
// to, read atomically. The API client tags each request with this epoch.
func (s *Store) Snapshot() (token string, epoch uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.epoch
}

// Epoch returns the current session epoch.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Valid reports whether a token is present.
func (s *Store) Valid() bool {
	_, ok := s.Token()
	return ok
}

// User returns the authenticated user, or nil before the profile has been
// loaded.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser records the profile of the current session's user.
func (s *Store) SetUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return
	}
	u := *user
	s.user = &u
}

// Establish replaces any current session with token and returns the new
// epoch. The token is persisted before Establish returns.
func (s *Store) Establish(token string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.user = nil
	s.epoch++
	if err := s.vault.Set(TokenKey, token); err != nil {
		s.logger.Warn("persisting token", "error", err)
	}
	s.logger.Debug("session established", "epoch", s.epoch)
	return s.epoch
}

// Invalidate clears the session. It reports whether a token was actually
// cleared; calling it on an empty store is a no-op.
func (s *Store) Invalidate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidateLocked()
}

// InvalidateEpoch clears the session only if it is still the one that was
// current at epoch. A late failure from a superseded session therefore
// cannot clear a newer one.
func (s *Store) InvalidateEpoch(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	return s.invalidateLocked()
}

func (s *Store) invalidateLocked() bool {
	if s.token == "" {
		return false
	}
	s.token = ""
	s.user = nil
	s.epoch++
	if err := s.vault.Delete(TokenKey); err != nil {
		s.logger.Warn("clearing persisted token", "error", err)
	}
	s.logger.Debug("session invalidated", "epoch", s.epoch)
	return true
}
