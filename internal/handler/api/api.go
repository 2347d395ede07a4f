// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API handlers for the category hierarchy.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/otax-go/internal/service"
	"github.com/olegiv/otax-go/internal/taxonomy"
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	categories *service.CategoryService
	logger     *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(categories *service.CategoryService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		categories: categories,
		logger:     logger,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total   int64 `json:"total,omitempty"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// writeDomainError maps hierarchy error kinds onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *taxonomy.ValidationError
		notFoundErr   *taxonomy.NotFoundError
		cycleErr      *taxonomy.CycleError
		duplicateErr  *taxonomy.DuplicateSlugError
		conflictErr   *taxonomy.ConcurrentModificationError
		invalidOpErr  *taxonomy.InvalidOperationError
	)

	switch {
	case errors.As(err, &validationErr):
		WriteValidationError(w, map[string]string{validationErr.Field: validationErr.Message})
	case errors.As(err, &notFoundErr):
		WriteNotFound(w, notFoundErr.Error())
	case errors.As(err, &cycleErr):
		WriteError(w, http.StatusConflict, "cycle", cycleErr.Error(), nil)
	case errors.As(err, &duplicateErr):
		WriteError(w, http.StatusConflict, "duplicate_slug", duplicateErr.Error(), nil)
	case errors.As(err, &conflictErr):
		WriteError(w, http.StatusConflict, "concurrent_modification", conflictErr.Error(), nil)
	case errors.As(err, &invalidOpErr):
		WriteBadRequest(w, invalidOpErr.Error(), nil)
	default:
		h.logger.Error("unhandled API error", "error", err)
		WriteInternalError(w, "Internal server error")
	}
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{
		Status:  "ok",
		Version: "v1",
	}, nil)
}
