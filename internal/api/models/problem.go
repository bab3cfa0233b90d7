package models

import (
	"encoding/json"
	"net/http"
)

// ContentTypeProblem is the media type of every error response.
const ContentTypeProblem = "application/problem+json"

// Problem is an RFC 7807 error body. TraceID carries the request ID.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation       = "https://atmosguard.dev/problems/validation-error"
	ProblemTypeUnauthorized     = "https://atmosguard.dev/problems/unauthorized"
	ProblemTypeForbidden        = "https://atmosguard.dev/problems/forbidden"
	ProblemTypeNotFound         = "https://atmosguard.dev/problems/not-found"
	ProblemTypeConflict         = "https://atmosguard.dev/problems/conflict"
	ProblemTypeUnsupportedMedia = "https://atmosguard.dev/problems/unsupported-media-type"
	ProblemTypeTooManyRequests  = "https://atmosguard.dev/problems/too-many-requests"
	ProblemTypeInternal         = "https://atmosguard.dev/problems/internal-error"
	ProblemTypeBadGateway       = "https://atmosguard.dev/problems/upstream-error"
	ProblemTypeUnavailable      = "https://atmosguard.dev/problems/service-unavailable"
	ProblemTypeTLSRequired      = "https://atmosguard.dev/problems/tls-required"
)

var problemKinds = map[int]struct{ typ, title string }{
	http.StatusBadRequest:           {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:         {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusForbidden:            {ProblemTypeForbidden, "Forbidden"},
	http.StatusNotFound:             {ProblemTypeNotFound, "Not found"},
	http.StatusConflict:             {ProblemTypeConflict, "Conflict"},
	http.StatusUnsupportedMediaType: {ProblemTypeUnsupportedMedia, "Unsupported media type"},
	http.StatusTooManyRequests:      {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError:  {ProblemTypeInternal, "Internal server error"},
	http.StatusBadGateway:           {ProblemTypeBadGateway, "Upstream error"},
	http.StatusServiceUnavailable:   {ProblemTypeUnavailable, "Service unavailable"},
}

// NewProblem creates a Problem with an explicit type and title.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{Type: problemType, Title: title, Status: status, TraceID: traceID}
}

// ProblemFor creates a Problem with the type and title registered for
// status. Unregistered statuses get "about:blank" and the HTTP status text.
func ProblemFor(status int, traceID, detail string) *Problem {
	kind, ok := problemKinds[status]
	if !ok {
		kind.typ, kind.title = "about:blank", http.StatusText(status)
	}
	return NewProblem(kind.typ, kind.title, status, traceID).WithDetail(detail)
}

func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write sends the problem with its status code, echoing the trace ID in the
// X-Request-Id header.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentTypeProblem)
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return ProblemFor(http.StatusBadRequest, traceID, detail).WithErrors(errors)
}

func NewUnauthorized(traceID, detail string) *Problem {
	return ProblemFor(http.StatusUnauthorized, traceID, detail)
}

func NewForbidden(traceID, detail string) *Problem {
	return ProblemFor(http.StatusForbidden, traceID, detail)
}

func NewNotFound(traceID, detail string) *Problem {
	return ProblemFor(http.StatusNotFound, traceID, detail)
}

func NewConflict(traceID, detail string) *Problem {
	return ProblemFor(http.StatusConflict, traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return ProblemFor(http.StatusTooManyRequests, traceID, detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return ProblemFor(http.StatusInternalServerError, traceID, detail)
}

// NewBadGateway reports an upstream provider failure.
func NewBadGateway(traceID, detail string) *Problem {
	return ProblemFor(http.StatusBadGateway, traceID, detail)
}

func NewServiceUnavailable(traceID, detail string) *Problem {
	return ProblemFor(http.StatusServiceUnavailable, traceID, detail)
}
