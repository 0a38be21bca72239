package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/uniresolve/internal/app"
	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/Amund211/uniresolve/internal/reporting"
	"github.com/Amund211/uniresolve/internal/strutils"
)

type accessionResponse struct {
	Success          bool     `json:"success"`
	Identifiers      []string `json:"identifiers,omitempty"`
	PrimaryAccession string   `json:"primaryAccession,omitempty"`
	Cause            string   `json:"cause,omitempty"`
}

// Serves GET /v1/accession/{identifier} and GET /v1/accession?ids=A,B
func MakeResolveAccessionHandler(
	resolveAccession app.ResolveAccession,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildEndpointMiddleware(
		"accession",
		rateLimits{
			// Every miss submits a mapping job upstream
			ipRefillPerSecond:     1,
			ipBurstSize:           60,
			userIDRefillPerSecond: 0.5,
			userIDBurstSize:       30,
		},
		allowedOrigins,
		rootLogger,
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var rawIdentifiers []string
		if identifier := r.PathValue("identifier"); identifier != "" {
			rawIdentifiers = []string{identifier}
		} else {
			rawIdentifiers = strutils.SplitIdentifiers(r.URL.Query().Get("ids"))
		}

		userID := r.Header.Get("X-User-Id")
		ctx = reporting.SetUserIDInContext(ctx, userID)
		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"identifiers": fmt.Sprintf("%.200s", strutils.JoinIdentifiers(rawIdentifiers)),
			},
		)

		identifiers, err := strutils.NormalizeIdentifiers(rawIdentifiers)
		if err != nil {
			writeAccessionResponse(ctx, w, http.StatusBadRequest, accessionResponse{Cause: "invalid identifier"})
			return
		}

		accession, err := resolveAccession(ctx, identifiers)
		if err != nil {
			statusCode, cause := accessionErrorStatus(err)
			logging.FromContext(ctx).InfoContext(ctx, "Could not resolve accession", slog.String("error", err.Error()), slog.Int("status", statusCode))
			// NOTE: The resolver handles its own error reporting
			writeAccessionResponse(ctx, w, statusCode, accessionResponse{Identifiers: identifiers, Cause: cause})
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("primaryAccession", accession))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"primaryAccession": accession})

		writeAccessionResponse(ctx, w, http.StatusOK, accessionResponse{
			Success:          true,
			Identifiers:      identifiers,
			PrimaryAccession: accession,
		})
	}

	return middleware(handler)
}

func accessionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier):
		return http.StatusBadRequest, "invalid identifier"
	case errors.Is(err, domain.ErrNoCanonicalAccession):
		return http.StatusNotFound, "no canonical accession"
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		return http.StatusServiceUnavailable, "temporarily unavailable"
	case errors.Is(err, domain.ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "mapping job timed out"
	default:
		return http.StatusBadGateway, "upstream error"
	}
}

func writeAccessionResponse(ctx context.Context, w http.ResponseWriter, statusCode int, response accessionResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal accession response: %w", err))
		writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, statusCode, data)
}
