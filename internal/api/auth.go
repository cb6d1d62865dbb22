package api

import (
	"context"

	"github.com/nhle/todosync/internal/model"
)

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the body of POST /auth/register and POST /users.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// LoginResult is the data of a successful login.
type LoginResult struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int        `json:"expires_in"`
	User        model.User `json:"user"`
}

// Login exchanges credentials for an access token. It does not touch the
// session; the caller establishes it.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var result LoginResult
	if err := c.Post(ctx, "/auth/login", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg Registration) (*model.User, error) {
	var user model.User
	if err := c.Post(ctx, "/auth/register", reg, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me fetches the profile of the session's user. A rejected token clears
// the session.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.Get(ctx, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates an account on behalf of an administrator.
func (c *Client) CreateUser(ctx context.Context, reg Registration) (*model.User, error) {
	var user model.User
	if err := c.Post(ctx, "/users", reg, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the session's token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, "/auth/logout", nil, nil)
}
