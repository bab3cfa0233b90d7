package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/atmosguard/atmosguard/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers that set their own type keep it.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects POST, PUT and PATCH requests whose body is declared as
// anything other than JSON with 415. Requests without a Content-Type pass,
// as do action endpoints like play and pause that send no body.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "" && !isJSON(ct) {
				models.ProblemFor(http.StatusUnsupportedMediaType, GetRequestID(r.Context()), "Content-Type must be application/json").
					WithInstance(r.URL.Path).
					Write(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
