package logging

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

func orMissing(value string) string {
	if value == "" {
		return "<missing>"
	}
	return value
}

func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identifiers := r.PathValue("identifier")
			if identifiers == "" {
				identifiers = r.URL.Query().Get("ids")
			}

			requestLogger := logger.With(
				slog.String("correlationID", uuid.New().String()),
				slog.String("identifiers", orMissing(identifiers)),
				slog.String("userId", orMissing(r.Header.Get("X-User-Id"))),
				slog.String("userAgent", orMissing(r.UserAgent())),
				slog.String("methodPath", fmt.Sprintf("%s %s", r.Method, r.URL.Path)),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
