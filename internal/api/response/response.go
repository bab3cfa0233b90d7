// Package response writes JSON and problem+json bodies for the API handlers.
// Every response echoes the request ID in X-Request-Id.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/atmosguard/atmosguard/internal/api/middleware"
	"github.com/atmosguard/atmosguard/internal/api/models"
)

// JSON writes data with status. A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	echoRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Created writes a 201 with a Location header when location is set.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	echoRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// Problem writes the canonical problem for status.
func Problem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	Error(w, r, models.ProblemFor(status, requestID(r), detail))
}

// BadRequest writes a 400 listing the invalid fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(requestID(r), detail, errors))
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusNotFound, detail)
}

func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusConflict, detail)
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusInternalServerError, detail)
}

// BadGateway reports an upstream provider failure.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusBadGateway, detail)
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusServiceUnavailable, detail)
}

func echoRequestID(w http.ResponseWriter, r *http.Request) {
	if id := requestID(r); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
