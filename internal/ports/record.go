package ports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Amund211/uniresolve/internal/app"
	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/Amund211/uniresolve/internal/reporting"
)

// Serves GET /v1/record/{identifier} with the flat-file text as-is
func MakeFetchRecordHandler(
	fetchRecord app.FetchRecord,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildEndpointMiddleware(
		"record",
		rateLimits{
			ipRefillPerSecond:     4,
			ipBurstSize:           240,
			userIDRefillPerSecond: 2,
			userIDBurstSize:       120,
		},
		allowedOrigins,
		rootLogger,
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		entry := r.PathValue("identifier")

		ctx = reporting.SetUserIDInContext(ctx, r.Header.Get("X-User-Id"))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"entry": entry})

		record, err := fetchRecord(ctx, entry)
		if errors.Is(err, domain.ErrInvalidIdentifier) {
			writeErrorResponse(w, http.StatusBadRequest, "invalid identifier")
			return
		} else if err != nil {
			// NOTE: The fetcher handles its own error reporting
			writeErrorResponse(w, http.StatusBadGateway, "upstream error")
			return
		}

		logging.FromContext(ctx).InfoContext(ctx, "Fetched record", slog.Int("upstreamStatus", record.StatusCode), slog.Int("length", len(record.Text)))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Upstream-Status", strconv.Itoa(record.StatusCode))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(record.Text))
	}

	return middleware(handler)
}
