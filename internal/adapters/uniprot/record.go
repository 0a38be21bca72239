package uniprot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/reporting"
)

// Fetch the flat-file record for an entry.
//
// The body is returned as-is together with the status code. Non-2xx responses
// are not treated as errors.
func (u *UniProt) FetchRecord(ctx context.Context, entry string) (domain.Record, error) {
	ctx, span := u.tracer.Start(ctx, "UniProt.FetchRecord")
	defer span.End()

	url := u.endpoints.RecordBaseURL + entry + ".txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return domain.Record{}, err
	}

	resp, err := u.do(ctx, req, "fetch_record")
	if err != nil {
		return domain.Record{}, err
	}

	return domain.Record{
		Entry:      entry,
		URL:        url,
		StatusCode: resp.statusCode,
		Text:       string(resp.data),
	}, nil
}
