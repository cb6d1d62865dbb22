// Package server is the reference REST backend the client synchronizes
// against. Every response is wrapped in a {code, message, data} envelope.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

// APIPrefix is the path every route is mounted under.
const APIPrefix = "/api/v1"

// Options configures a Server.
type Options struct {
	TokenTTL time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Server serves the todo REST API over a store.Store.
type Server struct {
	store    store.Store
	tokenTTL time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Server and registers its routes.
func New(s store.Store, opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	srv := &Server{
		store:    s,
		tokenTTL: opts.TokenTTL,
		clock:    opts.Clock,
		logger:   opts.Logger,
		mux:      http.NewServeMux(),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.handle("POST /auth/login", s.handleLogin)
	s.handle("POST /auth/register", s.handleRegister)
	s.handleAuthed("POST /auth/logout", s.handleLogout)

	s.handleAuthed("GET /users/me", s.handleMe)
	s.handleAuthed("POST /users", s.handleCreateUser)

	s.handleAuthed("GET /todos", s.handleListTodos)
	s.handleAuthed("POST /todos", s.handleCreateTodo)
	s.handleAuthed("PUT /todos/{id}", s.handleUpdateTodo)
	s.handleAuthed("DELETE /todos/{id}", s.handleDeleteTodo)
	s.handleAuthed("DELETE /todos/clear-done", s.handleClearDone)
	s.handleAuthed("PATCH /todos/batch/status", s.handleBatchStatus)

	s.handleAuthed("GET /trash", s.handleListTrash)
	s.handleAuthed("POST /trash/{id}/restore", s.handleRestore)
	s.handleAuthed("DELETE /trash/{id}/purge", s.handlePurge)
	s.handleAuthed("DELETE /trash/clear", s.handleClearTrash)

	s.handleAuthed("GET /categories", s.handleListCategories)
	s.handleAuthed("POST /categories", s.handleCreateCategory)
	s.handleAuthed("PUT /categories/{id}", s.handleUpdateCategory)
	s.handleAuthed("DELETE /categories/{id}", s.handleDeleteCategory)

	s.handleAuthed("GET /stats/summary", s.handleStats)

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		sendStatus(w, http.StatusNotFound, "not_found")
	})
}

// handle registers pattern ("METHOD /path") under APIPrefix.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	method, path, _ := strings.Cut(pattern, " ")
	s.mux.HandleFunc(method+" "+APIPrefix+path, h)
}

func (s *Server) handleAuthed(pattern string, h func(http.ResponseWriter, *http.Request, *model.User)) {
	s.handle(pattern, s.authenticate(h))
}

// ServeHTTP implements http.Handler with request logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := s.clock.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", s.clock.Since(start),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// authenticate resolves the bearer token and passes its user to h. A
// missing, unknown or expired token is answered with 401.
func (s *Server) authenticate(h func(http.ResponseWriter, *http.Request, *model.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			sendStatus(w, http.StatusUnauthorized, "not_authenticated")
			return
		}
		user, err := s.store.ResolveToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrTokenExpired) {
				sendStatus(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			s.internalError(w, r, err)
			return
		}
		h(w, r, user)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// decodeBody decodes the JSON request body into v, answering 422 on
// malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendValidation(w, "validation_error")
		return false
	}
	return true
}

// sendStoreError maps a store sentinel to its HTTP status. notFound names
// the resource in the 404 message.
func (s *Server) sendStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		sendStatus(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrConflict):
		sendStatus(w, http.StatusConflict, "conflict")
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	sendStatus(w, http.StatusInternalServerError, "internal_error")
}

// today is the server's calendar date.
func (s *Server) today() model.Date {
	return model.DateOf(s.clock.Now())
}
