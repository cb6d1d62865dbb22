package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

type categoryBody struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Order *int    `json:"order"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, user *model.User) {
	categories, err := s.store.ListCategories(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	sendOK(w, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, user *model.User) {
	var body categoryBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		sendValidation(w, "validation_error")
		return
	}

	category := model.Category{Name: strings.TrimSpace(*body.Name)}
	if body.Color != nil {
		category.Color = *body.Color
	}
	if body.Order != nil {
		category.Order = *body.Order
	}
	created, err := s.store.CreateCategory(r.Context(), user.ID, category)
	if errors.Is(err, store.ErrConflict) {
		sendError(w, http.StatusConflict, codeConflict, "category_exists")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	sendOK(w, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, user *model.User) {
	var body categoryBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name != nil && strings.TrimSpace(*body.Name) == "" {
		sendValidation(w, "validation_error")
		return
	}

	updated, err := s.store.UpdateCategory(r.Context(), user.ID, r.PathValue("id"), store.CategoryChanges{
		Name:  body.Name,
		Color: body.Color,
		Order: body.Order,
	})
	if errors.Is(err, store.ErrConflict) {
		sendError(w, http.StatusConflict, codeConflict, "category_exists")
		return
	}
	if err != nil {
		s.sendStoreError(w, r, err, "category_not_found")
		return
	}
	sendOK(w, updated)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.store.DeleteCategory(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.sendStoreError(w, r, err, "category_not_found")
		return
	}
	sendOK(w, nil)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, user *model.User) {
	stats, err := s.store.StatsSummary(r.Context(), user.ID, s.clock.Now())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	sendOK(w, stats)
}
