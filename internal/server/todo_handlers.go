package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type createTodoBody struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    string      `json:"priority"`
	Status      string      `json:"status"`
	DueDate     *model.Date `json:"due_date"`
	CategoryID  *string     `json:"category_id"`
	Tags        []string    `json:"tags"`
}

type updateTodoBody struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	Priority    *string     `json:"priority"`
	Status      *string     `json:"status"`
	DueDate     *model.Date `json:"due_date"`
	CategoryID  *string     `json:"category_id"`
	Tags        []string    `json:"tags"`
}

type batchStatusBody struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

// pagination parses page and page_size. ok is false, with a 422 already
// written, when either is out of range.
func pagination(w http.ResponseWriter, q url.Values) (page, pageSize int, ok bool) {
	page, pageSize = 1, defaultPageSize
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendValidation(w, "validation_error")
			return 0, 0, false
		}
		page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			sendValidation(w, "validation_error")
			return 0, 0, false
		}
		pageSize = n
	}
	return page, pageSize, true
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request, user *model.User) {
	q := r.URL.Query()
	page, pageSize, ok := pagination(w, q)
	if !ok {
		return
	}
	includeDeleted, _ := strconv.ParseBool(q.Get("include_deleted"))

	filter := store.TodoFilter{
		Status:         q.Get("status"),
		Priority:       q.Get("priority"),
		CategoryID:     q.Get("category_id"),
		Keyword:        strings.TrimSpace(q.Get("keyword")),
		Due:            q.Get("due"),
		Today:          s.today(),
		SortBy:         q.Get("sort_by"),
		SortDesc:       q.Get("sort_order") != "asc",
		IncludeDeleted: includeDeleted,
		Page:           page,
		PageSize:       pageSize,
	}
	todos, total, err := s.store.ListTodos(r.Context(), user.ID, filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	sendPage(w, todos, page, pageSize, total)
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request, user *model.User) {
	var body createTodoBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Priority == "" {
		body.Priority = model.PriorityMedium
	}
	if body.Status == "" {
		body.Status = model.StatusTodo
	}
	if strings.TrimSpace(body.Title) == "" ||
		!model.ValidPriority(body.Priority) ||
		!model.ValidStatus(body.Status) {
		sendValidation(w, "validation_error")
		return
	}

	todo, err := s.store.CreateTodo(r.Context(), user.ID, model.Todo{
		Title:       strings.TrimSpace(body.Title),
		Description: body.Description,
		Priority:    body.Priority,
		Status:      body.Status,
		DueDate:     body.DueDate,
		CategoryID:  body.CategoryID,
		Tags:        body.Tags,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	sendOK(w, todo)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request, user *model.User) {
	var body updateTodoBody
	if !decodeBody(w, r, &body) {
		return
	}
	if (body.Title != nil && strings.TrimSpace(*body.Title) == "") ||
		(body.Priority != nil && !model.ValidPriority(*body.Priority)) ||
		(body.Status != nil && !model.ValidStatus(*body.Status)) {
		sendValidation(w, "validation_error")
		return
	}

	todo, err := s.store.UpdateTodo(r.Context(), user.ID, r.PathValue("id"), store.TodoChanges{
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		Status:      body.Status,
		DueDate:     body.DueDate,
		CategoryID:  body.CategoryID,
		Tags:        body.Tags,
	})
	if err != nil {
		s.sendStoreError(w, r, err, "todo_not_found")
		return
	}
	sendOK(w, todo)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.store.SoftDeleteTodo(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.sendStoreError(w, r, err, "todo_not_found")
		return
	}
	sendOK(w, nil)
}

func (s *Server) handleClearDone(w http.ResponseWriter, r *http.Request, user *model.User) {
	n, err := s.store.ClearDone(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.Debug("cleared done todos", "user_id", user.ID, "count", n)
	sendOK(w, nil)
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request, user *model.User) {
	var body batchStatusBody
	if !decodeBody(w, r, &body) {
		return
	}
	if !model.ValidStatus(body.Status) {
		sendValidation(w, "validation_error")
		return
	}
	if err := s.store.BatchStatus(r.Context(), user.ID, body.IDs, body.Status); err != nil {
		s.internalError(w, r, err)
		return
	}
	sendOK(w, nil)
}

func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request, user *model.User) {
	page, pageSize, ok := pagination(w, r.URL.Query())
	if !ok {
		return
	}
	todos, total, err := s.store.ListTrash(r.Context(), user.ID, page, pageSize)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	sendPage(w, todos, page, pageSize, total)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.store.RestoreTodo(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.sendStoreError(w, r, err, "todo_not_found")
		return
	}
	sendOK(w, nil)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.store.PurgeTodo(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.sendStoreError(w, r, err, "todo_not_found")
		return
	}
	sendOK(w, nil)
}

func (s *Server) handleClearTrash(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.store.ClearTrash(r.Context(), user.ID); err != nil {
		s.internalError(w, r, err)
		return
	}
	sendOK(w, nil)
}
