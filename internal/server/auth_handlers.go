package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registrationBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

type loginData struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int       `json:"expires_in"`
	User        loginUser `json:"user"`
}

type registeredData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decodeBody(w, r, &body) {
		return
	}

	user, err := s.store.Authenticate(r.Context(), body.Username, body.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		sendError(w, http.StatusUnauthorized, codeUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	token, err := s.store.IssueToken(r.Context(), user.ID, s.tokenTTL)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	sendOK(w, loginData{
		AccessToken: token,
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		User:        loginUser{ID: user.ID, Username: user.Username, AvatarURL: user.AvatarURL},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registrationBody
	if !decodeBody(w, r, &body) {
		return
	}
	s.createAccount(w, r, body)
}

// handleCreateUser lets an administrator create accounts.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, caller *model.User) {
	if !caller.IsAdmin() {
		sendStatus(w, http.StatusForbidden, "forbidden")
		return
	}
	var body registrationBody
	if !decodeBody(w, r, &body) {
		return
	}
	s.createAccount(w, r, body)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request, body registrationBody) {
	if strings.TrimSpace(body.Username) == "" || body.Password == "" {
		sendValidation(w, "validation_error")
		return
	}

	user, err := s.store.CreateUser(r.Context(), body.Username, body.Password, body.Email, model.RoleUser)
	if errors.Is(err, store.ErrConflict) {
		sendError(w, http.StatusConflict, codeConflict, "username_exists")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	sendOK(w, registeredData{ID: user.ID, Username: user.Username})
}

// handleLogout revokes the caller's token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ *model.User) {
	token, _ := bearerToken(r)
	if err := s.store.RevokeToken(r.Context(), token); err != nil {
		s.internalError(w, r, err)
		return
	}
	sendOK(w, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user *model.User) {
	sendOK(w, user)
}
