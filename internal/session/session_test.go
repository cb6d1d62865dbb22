package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
)

func newTestStore(t *testing.T) (*Store, *credential.Vault) {
	t.Helper()
	vault := credential.NewMemoryVault()
	return NewStore(vault, nil), vault
}

func TestStoreLoadsPersistedToken(t *testing.T) {
	vault := credential.NewMemoryVault()
	require.NoError(t, vault.Set(TokenKey, "persisted"))

	s := NewStore(vault, nil)
	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "persisted", token)
}

func TestStoreEstablishPersistsAndAdvancesEpoch(t *testing.T) {
	s, vault := newTestStore(t)
	before := s.Epoch()

	epoch := s.Establish("tok-1")
	assert.Greater(t, epoch, before)

	stored, err := vault.Get(TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored)

	token, snapEpoch := s.Snapshot()
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, epoch, snapEpoch)
}

func TestStoreInvalidateIsIdempotent(t *testing.T) {
	s, vault := newTestStore(t)
	s.Establish("tok-1")

	assert.True(t, s.Invalidate())
	epoch := s.Epoch()
	assert.False(t, s.Valid())

	assert.False(t, s.Invalidate())
	assert.False(t, s.Valid())
	assert.Equal(t, epoch, s.Epoch(), "a no-op invalidate does not advance the epoch")

	_, err := vault.Get(TokenKey)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestStoreInvalidateEpochIgnoresSupersededSession(t *testing.T) {
	s, _ := newTestStore(t)
	old := s.Establish("old")
	s.Establish("new")

	assert.False(t, s.InvalidateEpoch(old))
	token, _ := s.Token()
	assert.Equal(t, "new", token)
}

func authErr(epoch uint64) error {
	return &api.Error{Kind: api.KindAuthExpired, Code: http.StatusUnauthorized, Epoch: epoch, Path: "/todos"}
}

func TestClassifierTransientFailures(t *testing.T) {
	s, _ := newTestStore(t)
	s.Establish("tok")
	c := NewClassifier(s, nil)
	fired := 0
	c.OnExpired(func() { fired++ })

	v := c.Classify(&api.Error{Kind: api.KindTransport})
	assert.False(t, v.SessionExpired)
	assert.Equal(t, MessageUnreachable, v.Message)

	v = c.Classify(&api.Error{Kind: api.KindBusiness, Code: api.CodeNotFound, Message: "todo_not_found"})
	assert.False(t, v.SessionExpired)
	assert.Equal(t, "todo_not_found", v.Message)

	assert.True(t, s.Valid(), "transient failures leave the session alone")
	assert.Equal(t, 0, fired)
}

func TestClassifierExpiryInvalidatesAndNotifiesOnce(t *testing.T) {
	s, _ := newTestStore(t)
	epoch := s.Establish("tok")
	c := NewClassifier(s, nil)
	fired := 0
	c.OnExpired(func() { fired++ })

	v := c.Classify(authErr(epoch))
	assert.True(t, v.SessionExpired)
	assert.False(t, v.Stale)
	assert.Equal(t, MessageSessionExpired, v.Message)
	assert.False(t, s.Valid())

	// A second failure from the same dead session does not notify again.
	v = c.Classify(authErr(epoch))
	assert.True(t, v.SessionExpired)
	assert.Equal(t, 1, fired)

	// A new session that expires notifies again.
	next := s.Establish("tok-2")
	c.Classify(authErr(next))
	assert.Equal(t, 2, fired)
}

func TestClassifierWrappedErrors(t *testing.T) {
	s, _ := newTestStore(t)
	epoch := s.Establish("tok")
	c := NewClassifier(s, nil)

	v := c.Classify(errors.Join(errors.New("loading todos"), authErr(epoch)))
	assert.True(t, v.SessionExpired)

	v = c.Classify(context.Canceled)
	assert.False(t, v.SessionExpired)
}

func TestClassifierDiscardsFailureFromSupersededSession(t *testing.T) {
	s, _ := newTestStore(t)
	old := s.Establish("old")
	s.Establish("new")
	c := NewClassifier(s, nil)
	fired := 0
	c.OnExpired(func() { fired++ })

	v := c.Classify(authErr(old))
	assert.True(t, v.SessionExpired)
	assert.True(t, v.Stale)
	assert.True(t, s.Valid())
	assert.Equal(t, 0, fired)
}

// fakeAuth is a scripted Authenticator.
type fakeAuth struct {
	store      *Store
	accounts   map[string]string
	meErr      error
	loginErr   error
	registered []string
	calls      []string
}

func (f *fakeAuth) Login(_ context.Context, creds api.Credentials) (*api.LoginResult, error) {
	f.calls = append(f.calls, "login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if pw, ok := f.accounts[creds.Username]; !ok || pw != creds.Password {
		return nil, &api.Error{Kind: api.KindAuthExpired, Code: api.CodeInvalidCredentials, Message: "invalid_credentials"}
	}
	return &api.LoginResult{AccessToken: "tok-" + creds.Username, User: model.User{Username: creds.Username}}, nil
}

func (f *fakeAuth) Register(_ context.Context, reg api.Registration) (*model.User, error) {
	f.calls = append(f.calls, "register")
	if _, ok := f.accounts[reg.Username]; ok {
		return nil, &api.Error{Kind: api.KindBusiness, Code: api.CodeConflict, Message: "username_exists"}
	}
	f.accounts[reg.Username] = reg.Password
	f.registered = append(f.registered, reg.Username)
	return &model.User{Username: reg.Username}, nil
}

func (f *fakeAuth) Me(context.Context) (*model.User, error) {
	f.calls = append(f.calls, "me")
	if f.meErr != nil {
		return nil, f.meErr
	}
	token, _ := f.store.Token()
	return &model.User{Username: token[len("tok-"):], Role: model.RoleUser}, nil
}

var demo = api.Registration{Username: "demo", Password: "123456", Email: "demo@example.com"}

func TestBootstrapLoginModeWithoutTokenRequiresLogin(t *testing.T) {
	s, _ := newTestStore(t)
	auth := &fakeAuth{store: s, accounts: map[string]string{}}
	b := NewBootstrapper(s, auth, model.AuthModeLogin, demo, nil)

	_, err := b.Run(context.Background())
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Empty(t, auth.calls)
}

func TestBootstrapRejectedTokenEndsAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	s.Establish("tok-stale")
	auth := &fakeAuth{
		store:    s,
		accounts: map[string]string{},
		meErr:    &api.Error{Kind: api.KindAuthExpired, Code: http.StatusUnauthorized},
	}
	b := NewBootstrapper(s, auth, model.AuthModeLogin, demo, nil)

	_, err := b.Run(context.Background())
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.False(t, s.Valid())
	assert.Equal(t, []string{"me"}, auth.calls)
}

func TestBootstrapResumesValidToken(t *testing.T) {
	s, _ := newTestStore(t)
	s.Establish("tok-alice")
	auth := &fakeAuth{store: s, accounts: map[string]string{}}
	b := NewBootstrapper(s, auth, model.AuthModeLogin, demo, nil)

	user, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice", s.User().Username)
}

func TestBootstrapTransportFailureKeepsToken(t *testing.T) {
	s, _ := newTestStore(t)
	s.Establish("tok-alice")
	auth := &fakeAuth{store: s, accounts: map[string]string{}, meErr: &api.Error{Kind: api.KindTransport}}
	b := NewBootstrapper(s, auth, model.AuthModeLogin, demo, nil)

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLoginRequired)
	assert.True(t, s.Valid())
}

func TestExplicitLogin(t *testing.T) {
	s, _ := newTestStore(t)
	auth := &fakeAuth{store: s, accounts: map[string]string{"alice": "pw"}}
	b := NewBootstrapper(s, auth, model.AuthModeLogin, demo, nil)

	_, err := b.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.False(t, s.Valid())

	user, err := b.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	token, _ := s.Token()
	assert.Equal(t, "tok-alice", token)
}

func TestDemoModeRegistersMissingAccount(t *testing.T) {
	s, _ := newTestStore(t)
	auth := &fakeAuth{store: s, accounts: map[string]string{}}
	b := NewBootstrapper(s, auth, model.AuthModeDemo, demo, nil)

	user, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo", user.Username)
	assert.Equal(t, []string{"demo"}, auth.registered)
	assert.Equal(t, []string{"login", "register", "login", "me"}, auth.calls)
	assert.True(t, s.Valid())
}

func TestDemoModeExistingAccountLogsInDirectly(t *testing.T) {
	s, _ := newTestStore(t)
	auth := &fakeAuth{store: s, accounts: map[string]string{"demo": "123456"}}
	b := NewBootstrapper(s, auth, model.AuthModeDemo, demo, nil)

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth.registered)
	assert.Equal(t, []string{"login", "me"}, auth.calls)
}

func TestDemoModeToleratesRegistrationConflict(t *testing.T) {
	s, _ := newTestStore(t)
	// The account exists but the first login fails for another reason
	// (e.g. a race with a concurrent registration): register conflicts,
	// the second login decides.
	auth := &fakeAuth{store: s, accounts: map[string]string{"demo": "123456"}}
	first := true
	b := NewBootstrapper(s, &flakyLogin{fakeAuth: auth, failFirst: &first}, model.AuthModeDemo, demo, nil)

	user, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo", user.Username)
	assert.Equal(t, []string{"login", "register", "login", "me"}, auth.calls)
}

type flakyLogin struct {
	*fakeAuth
	failFirst *bool
}

func (f *flakyLogin) Login(ctx context.Context, creds api.Credentials) (*api.LoginResult, error) {
	if *f.failFirst {
		*f.failFirst = false
		f.calls = append(f.calls, "login")
		return nil, &api.Error{Kind: api.KindBusiness, Code: api.CodeBadRequest}
	}
	return f.fakeAuth.Login(ctx, creds)
}

func TestDemoModeTransportFailureDoesNotRegister(t *testing.T) {
	s, _ := newTestStore(t)
	auth := &fakeAuth{store: s, accounts: map[string]string{}, loginErr: &api.Error{Kind: api.KindTransport}}
	b := NewBootstrapper(s, auth, model.AuthModeDemo, demo, nil)

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsTransport(err))
	assert.Equal(t, []string{"login"}, auth.calls)
}
