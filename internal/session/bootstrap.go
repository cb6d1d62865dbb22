package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/model"
)

// ErrLoginRequired is returned by Bootstrapper when no valid session
// exists and the user must supply credentials.
var ErrLoginRequired = errors.New("session: login required")

// Authenticator is the subset of the REST API used to establish a
// session.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (*api.LoginResult, error)
	Register(ctx context.Context, reg api.Registration) (*model.User, error)
	Me(ctx context.Context) (*model.User, error)
}

// Bootstrapper brings the Store to a valid session. In explicit-login
// mode it validates a persisted token and otherwise asks for
// credentials. In demo mode it logs into (and if needed registers) a
// fixed demo account without user interaction.
type Bootstrapper struct {
	store  *Store
	auth   Authenticator
	mode   string
	demo   api.Registration
	logger *slog.Logger
}

// NewBootstrapper returns a Bootstrapper. mode is model.AuthModeLogin or
// model.AuthModeDemo; demo is only used in demo mode.
func NewBootstrapper(
	store *Store,
	auth Authenticator,
	mode string,
	demo api.Registration,
	logger *slog.Logger,
) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{
		store:  store,
		auth:   auth,
		mode:   mode,
		demo:   demo,
		logger: logger,
	}
}

// Mode returns the bootstrap mode.
func (b *Bootstrapper) Mode() string { return b.mode }

// Run establishes a session according to the mode. In login mode it
// returns ErrLoginRequired when the caller must collect credentials and
// call Login.
func (b *Bootstrapper) Run(ctx context.Context) (*model.User, error) {
	user, err := b.Resume(ctx)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrLoginRequired) {
		return nil, err
	}
	if b.mode != model.AuthModeDemo {
		return nil, ErrLoginRequired
	}
	return b.provisionDemo(ctx)
}

// Resume validates a persisted token by fetching the current user. A
// rejected token is invalidated and ErrLoginRequired returned. Transport
// failures are returned as is and leave the token in place.
func (b *Bootstrapper) Resume(ctx context.Context) (*model.User, error) {
	if !b.store.Valid() {
		return nil, ErrLoginRequired
	}

	user, err := b.auth.Me(ctx)
	if err != nil {
		if api.IsTransport(err) {
			return nil, fmt.Errorf("validating session: %w", err)
		}
		b.store.Invalidate()
		b.logger.Info("persisted session rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLoginRequired, err)
	}

	b.store.SetUser(user)
	return user, nil
}

// Login exchanges username and password for a token, establishes the
// session and loads the user's profile.
func (b *Bootstrapper) Login(ctx context.Context, username, password string) (*model.User, error) {
	result, err := b.auth.Login(ctx, api.Credentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("logging in as %q: %w", username, err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("logging in as %q: empty access token", username)
	}

	b.store.Establish(result.AccessToken)

	user, err := b.auth.Me(ctx)
	if err != nil {
		if api.IsAuthExpired(err) {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
		// The login response already carries the profile.
		b.logger.Warn("loading profile after login", "error", err)
		fallback := result.User
		user = &fallback
	}

	b.store.SetUser(user)
	b.logger.Info("signed in", "username", user.Username)
	return user, nil
}

// provisionDemo logs into the demo account, registering it first when the
// initial login fails. A failed registration (typically "account already
// exists") is not an error; the second login decides.
func (b *Bootstrapper) provisionDemo(ctx context.Context) (*model.User, error) {
	user, err := b.Login(ctx, b.demo.Username, b.demo.Password)
	if err == nil {
		return user, nil
	}
	if api.IsTransport(err) {
		return nil, err
	}

	b.logger.Info("demo login failed, registering demo account", "error", err)
	if _, regErr := b.auth.Register(ctx, b.demo); regErr != nil {
		b.logger.Debug("demo registration failed", "error", regErr)
	}

	return b.Login(ctx, b.demo.Username, b.demo.Password)
}
