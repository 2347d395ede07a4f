// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/otax-go/internal/model"
	"github.com/olegiv/otax-go/internal/service"
)

// CreateCategoryRequest represents the request body for creating a category.
type CreateCategoryRequest struct {
	CategoryType   string                 `json:"category_type"`
	Name           model.MultilingualText `json:"name"`
	Description    model.MultilingualText `json:"description,omitempty"`
	Slug           model.MultilingualText `json:"slug,omitempty"`
	SEOTitle       model.MultilingualText `json:"seo_title,omitempty"`
	SEODescription model.MultilingualText `json:"seo_description,omitempty"`
	ParentID       *string                `json:"parent_id,omitempty"`
	SortOrder      int                    `json:"sort_order,omitempty"`
	Visibility     string                 `json:"visibility,omitempty"`
	ColorScheme    string                 `json:"color_scheme,omitempty"`
}

// UpdateCategoryRequest represents the request body for updating a category.
// Omitted fields are left untouched. Set move_to_root to detach the node
// from its parent; parent_id moves it under a new parent.
type UpdateCategoryRequest struct {
	Name            *model.MultilingualText `json:"name,omitempty"`
	Description     *model.MultilingualText `json:"description,omitempty"`
	Slug            *model.MultilingualText `json:"slug,omitempty"`
	SEOTitle        *model.MultilingualText `json:"seo_title,omitempty"`
	SEODescription  *model.MultilingualText `json:"seo_description,omitempty"`
	ParentID        *string                 `json:"parent_id,omitempty"`
	MoveToRoot      bool                    `json:"move_to_root,omitempty"`
	SortOrder       *int                    `json:"sort_order,omitempty"`
	Visibility      *string                 `json:"visibility,omitempty"`
	ColorScheme     *string                 `json:"color_scheme,omitempty"`
	ExpectedVersion *int64                  `json:"expected_version,omitempty"`
}

// ContentDeltaRequest represents the request body for content count updates.
type ContentDeltaRequest struct {
	Delta int64 `json:"delta"`
}

// Routes returns the category API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCategories)
	r.Post("/", h.CreateCategory)
	r.Get("/tree", h.GetTree)
	r.Get("/{id}", h.GetCategory)
	r.Patch("/{id}", h.UpdateCategory)
	r.Delete("/{id}", h.DeleteCategory)
	r.Post("/{id}/content-delta", h.ApplyContentDelta)
	r.Post("/{id}/recalculate", h.Recalculate)

	return r
}

// ListCategories handles GET /api/v1/categories
// Supports filters: q, language, type, parent_id, root_only, include_inactive,
// plus page/per_page pagination.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := service.SearchInput{
		Query:           q.Get("q"),
		Language:        q.Get("language"),
		CategoryType:    q.Get("type"),
		IncludeInactive: q.Get("include_inactive") == "true",
		Page:            parseIntParam(q.Get("page"), 1),
		Limit:           parseIntParam(q.Get("per_page"), service.DefaultSearchLimit),
	}
	if parent := q.Get("parent_id"); parent != "" {
		in.ParentID = &parent
		in.FilterParent = true
	} else if q.Get("root_only") == "true" {
		in.ParentID = nil
		in.FilterParent = true
	}

	items, total, err := h.categories.Search(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	totalPages := int(total) / in.Limit
	if int(total)%in.Limit != 0 {
		totalPages++
	}

	WriteSuccess(w, items, &Meta{
		Total:   total,
		Page:    in.Page,
		PerPage: in.Limit,
		Pages:   totalPages,
	})
}

// GetCategory handles GET /api/v1/categories/{id}
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	category, err := h.categories.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	WriteSuccess(w, category, nil)
}

// GetTree handles GET /api/v1/categories/tree
// Query params: root_id (optional), depth (default 3), include_inactive.
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var rootID *string
	if root := q.Get("root_id"); root != "" {
		rootID = &root
	}
	depth := parseIntParam(q.Get("depth"), 3)
	includeInactive := q.Get("include_inactive") == "true"

	tree, err := h.categories.GetTree(r.Context(), rootID, depth, includeInactive)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	WriteSuccess(w, tree, nil)
}

// CreateCategory handles POST /api/v1/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	category, err := h.categories.Create(r.Context(), service.CreateCategoryInput{
		CategoryType:   req.CategoryType,
		Name:           req.Name,
		Description:    req.Description,
		Slug:           req.Slug,
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
		ParentID:       req.ParentID,
		SortOrder:      req.SortOrder,
		Visibility:     req.Visibility,
		ColorScheme:    req.ColorScheme,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	WriteCreated(w, category)
}

// UpdateCategory handles PATCH /api/v1/categories/{id}
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	category, err := h.categories.Update(r.Context(), id, service.UpdateCategoryInput{
		Name:            req.Name,
		Description:     req.Description,
		Slug:            req.Slug,
		SEOTitle:        req.SEOTitle,
		SEODescription:  req.SEODescription,
		ParentID:        req.ParentID,
		MoveToRoot:      req.MoveToRoot,
		SortOrder:       req.SortOrder,
		Visibility:      req.Visibility,
		ColorScheme:     req.ColorScheme,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	WriteSuccess(w, category, nil)
}

// DeleteCategory handles DELETE /api/v1/categories/{id}
// The body carries the deletion policy; an empty body deletes a leaf with
// no content.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var policy model.DeletionPolicy
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
			WriteBadRequest(w, "Invalid JSON body", nil)
			return
		}
	}

	report, err := h.categories.Delete(r.Context(), id, policy)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	WriteSuccess(w, report, nil)
}

// ApplyContentDelta handles POST /api/v1/categories/{id}/content-delta
func (h *Handler) ApplyContentDelta(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ContentDeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	category, err := h.categories.ApplyContentDelta(r.Context(), id, req.Delta)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	WriteSuccess(w, category, nil)
}

// Recalculate handles POST /api/v1/categories/{id}/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	category, err := h.categories.Recalculate(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	WriteSuccess(w, category, nil)
}

// parseIntParam parses a positive integer query parameter with a fallback.
func parseIntParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
