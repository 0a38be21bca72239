package uniprot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/Amund211/uniresolve/internal/reporting"
	"github.com/Amund211/uniresolve/internal/strutils"
)

const (
	mapFromDatabase = "UniProtKB_AC-ID"
	mapToDatabase   = "UniProtKB-Swiss-Prot"

	// Stop following rel="next" links after this many result pages
	maxResultPages = 50
)

// Submit a mapping job for the given identifiers and return its job id
func (u *UniProt) SubmitJob(ctx context.Context, ids []string) (string, error) {
	ctx, span := u.tracer.Start(ctx, "UniProt.SubmitJob")
	defer span.End()

	body, contentType, err := encodeSubmitForm(ids)
	if err != nil {
		err := fmt.Errorf("failed to encode form: %w", err)
		reporting.Report(ctx, err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoints.RESTBaseURL+"/idmapping/run", body)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.do(ctx, req, "submit_job")
	if err != nil {
		return "", err
	}

	logging.FromContext(ctx).DebugContext(ctx, "Got submit response", slog.String("data", string(resp.data)))

	jobID, err := jobIDFromRunResponse(resp.statusCode, resp.data)
	if errors.Is(err, domain.ErrTemporarilyUnavailable) || errors.Is(err, domain.ErrInvalidIdentifier) {
		return "", err
	} else if err != nil {
		err := fmt.Errorf("failed to get job id from uniprot response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(resp.data),
			"status": strconv.Itoa(resp.statusCode),
		})
		return "", err
	}

	return jobID, nil
}

func encodeSubmitForm(ids []string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := []struct{ name, value string }{
		{"from", mapFromDatabase},
		{"to", mapToDatabase},
		{"ids", strutils.JoinIdentifiers(ids)},
	}
	for _, field := range fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", field.name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Both error shapes used by the REST API
type serviceMessages struct {
	Messages []string       `json:"messages"`
	Errors   []serviceError `json:"errors"`
}

func (m serviceMessages) String() string {
	parts := make([]string, 0, len(m.Messages)+len(m.Errors))
	parts = append(parts, m.Messages...)
	for _, e := range m.Errors {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

func (m serviceMessages) empty() bool {
	return len(m.Messages) == 0 && len(m.Errors) == 0
}

func messagesFromBody(data []byte) string {
	var messages serviceMessages
	if err := json.Unmarshal(data, &messages); err != nil {
		return ""
	}
	return messages.String()
}

func statusError(statusCode int, data []byte) error {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return fmt.Errorf("%w: uniprot API returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	}

	if messages := messagesFromBody(data); messages != "" {
		return fmt.Errorf("uniprot API returned status code %d: %s", statusCode, messages)
	}
	return fmt.Errorf("uniprot API returned status code %d", statusCode)
}

type runResponse struct {
	JobID string `json:"jobId"`
}

func jobIDFromRunResponse(statusCode int, data []byte) (string, error) {
	if statusCode == http.StatusBadRequest {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidIdentifier, statusError(statusCode, data))
	}
	if statusCode < 200 || statusCode >= 300 {
		return "", statusError(statusCode, data)
	}

	var response runResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return "", fmt.Errorf("%w: failed to parse run response: %w", domain.ErrMalformedResponse, err)
	}

	if response.JobID == "" {
		return "", fmt.Errorf("%w: run response is missing jobId", domain.ErrMalformedResponse)
	}

	return response.JobID, nil
}

// Check the state of a mapping job once.
//
// When the job has finished without a canonical accession on the first page of
// results, the remaining pages are fetched until one is found.
func (u *UniProt) CheckJob(ctx context.Context, jobID string) (domain.MappingOutcome, error) {
	ctx, span := u.tracer.Start(ctx, "UniProt.CheckJob")
	defer span.End()

	page, err := u.getStatusPage(ctx, u.endpoints.RESTBaseURL+"/idmapping/status/"+jobID)
	if err != nil {
		return domain.MappingOutcome{}, err
	}

	if page.status.Pending() {
		return domain.StillRunningOutcome(jobID), nil
	}

	if !page.hasResults {
		// Finished, but the redirect to the results was not followed
		if page.location == "" {
			err := fmt.Errorf("%w: job finished without results or location", domain.ErrMalformedResponse)
			reporting.Report(ctx, err, map[string]string{"jobId": jobID})
			return domain.MappingOutcome{}, err
		}

		page, err = u.getStatusPage(ctx, page.location)
		if err != nil {
			return domain.MappingOutcome{}, err
		}
		if !page.hasResults {
			err := fmt.Errorf("%w: results page has no results", domain.ErrMalformedResponse)
			reporting.Report(ctx, err, map[string]string{"jobId": jobID})
			return domain.MappingOutcome{}, err
		}
	}

	results := page.results
	failedIDs := page.failedIDs
	for pages := 1; page.next != "" && pages < maxResultPages; pages++ {
		if _, found := domain.FirstCanonicalAccession(results); found {
			break
		}

		page, err = u.getStatusPage(ctx, page.next)
		if err != nil {
			return domain.MappingOutcome{}, err
		}
		if !page.hasResults {
			err := fmt.Errorf("%w: results page has no results", domain.ErrMalformedResponse)
			reporting.Report(ctx, err, map[string]string{"jobId": jobID})
			return domain.MappingOutcome{}, err
		}

		results = append(results, page.results...)
		failedIDs = append(failedIDs, page.failedIDs...)
	}

	return domain.FinishedOutcome(jobID, results, failedIDs), nil
}

func (u *UniProt) getStatusPage(ctx context.Context, pageURL string) (statusPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return statusPage{}, err
	}

	resp, err := u.do(ctx, req, "check_job")
	if err != nil {
		return statusPage{}, err
	}

	page, err := statusPageFromResponse(resp.statusCode, resp.header, resp.data, resp.url)
	if errors.Is(err, domain.ErrTemporarilyUnavailable) || errors.Is(err, domain.ErrJobFailed) {
		return statusPage{}, err
	} else if err != nil {
		err := fmt.Errorf("failed to parse uniprot status response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(resp.data),
			"status": strconv.Itoa(resp.statusCode),
		})
		return statusPage{}, err
	}

	return page, nil
}

type mappedEntryResponse struct {
	PrimaryAccession string `json:"primaryAccession"`
	UniProtKBID      string `json:"uniProtkbId"`
	EntryType        string `json:"entryType"`
}

type mappingResultResponse struct {
	From string              `json:"from"`
	To   mappedEntryResponse `json:"to"`
}

type statusResponse struct {
	JobStatus *string                  `json:"jobStatus"`
	Results   *[]mappingResultResponse `json:"results"`
	FailedIDs []string                 `json:"failedIds"`

	serviceMessages
}

type statusPage struct {
	status domain.JobStatus

	hasResults bool
	results    []domain.MappingResult
	failedIDs  []string

	// Absolute URLs, empty when absent
	location string
	next     string
}

func statusPageFromResponse(statusCode int, header http.Header, data []byte, requestURL *url.URL) (statusPage, error) {
	if statusCode >= 300 && statusCode < 400 {
		location := resolveReference(requestURL, header.Get("Location"))
		if location == "" {
			return statusPage{}, fmt.Errorf("%w: redirect with status code %d has no location", domain.ErrMalformedResponse, statusCode)
		}
		return statusPage{
			status:   domain.JobStatusFinished,
			location: location,
		}, nil
	}

	if statusCode < 200 || statusCode >= 300 {
		return statusPage{}, statusError(statusCode, data)
	}

	var response statusResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return statusPage{}, fmt.Errorf("%w: failed to parse status response: %w", domain.ErrMalformedResponse, err)
	}

	status := domain.JobStatusUnknown
	if response.JobStatus != nil {
		status = domain.ParseJobStatus(*response.JobStatus)
	}

	if status == domain.JobStatusError || !response.serviceMessages.empty() {
		return statusPage{}, fmt.Errorf("%w: %s", domain.ErrJobFailed, response.serviceMessages.String())
	}

	if response.Results != nil {
		results := make([]domain.MappingResult, 0, len(*response.Results))
		for _, result := range *response.Results {
			if result.To.PrimaryAccession == "" {
				return statusPage{}, fmt.Errorf("%w: result for %s is missing primaryAccession", domain.ErrMalformedResponse, result.From)
			}
			results = append(results, domain.MappingResult{
				From: result.From,
				To: domain.MappedEntry{
					PrimaryAccession: result.To.PrimaryAccession,
					UniProtKBID:      result.To.UniProtKBID,
					EntryType:        result.To.EntryType,
				},
			})
		}

		return statusPage{
			status:     domain.JobStatusFinished,
			hasResults: true,
			results:    results,
			failedIDs:  response.FailedIDs,
			next:       resolveReference(requestURL, parseNextLink(header.Values("Link"))),
		}, nil
	}

	switch status {
	case domain.JobStatusNew, domain.JobStatusRunning:
		return statusPage{status: status}, nil
	case domain.JobStatusFinished:
		return statusPage{
			status:   status,
			location: resolveReference(requestURL, header.Get("Location")),
		}, nil
	}

	if response.JobStatus == nil {
		return statusPage{}, fmt.Errorf("%w: status response has neither jobStatus nor results", domain.ErrMalformedResponse)
	}
	return statusPage{}, fmt.Errorf("%w: unknown job status %q", domain.ErrMalformedResponse, *response.JobStatus)
}

// Find the target of the rel="next" link in Link header values like
// `<https://rest.uniprot.org/idmapping/uniprotkb/results/abc?cursor=def&size=25>; rel="next"`
//
// Targets may contain commas, so links are delimited by their angle brackets.
func parseNextLink(values []string) string {
	for _, value := range values {
		rest := value
		for {
			start := strings.Index(rest, "<")
			if start == -1 {
				break
			}
			end := strings.Index(rest[start:], ">")
			if end == -1 {
				break
			}

			target := rest[start+1 : start+end]
			rest = rest[start+end+1:]

			params := rest
			if nextLink := strings.Index(rest, "<"); nextLink != -1 {
				params = rest[:nextLink]
			}

			for _, param := range strings.Split(params, ";") {
				key, relations, found := strings.Cut(strings.Trim(param, " ,"), "=")
				if !found || !strings.EqualFold(strings.TrimSpace(key), "rel") {
					continue
				}
				for _, relation := range strings.Fields(strings.Trim(relations, `"`)) {
					if strings.EqualFold(relation, "next") {
						return target
					}
				}
			}
		}
	}
	return ""
}

func resolveReference(base *url.URL, reference string) string {
	if reference == "" {
		return ""
	}
	if base == nil {
		return reference
	}

	parsed, err := base.Parse(reference)
	if err != nil {
		return reference
	}
	return parsed.String()
}
