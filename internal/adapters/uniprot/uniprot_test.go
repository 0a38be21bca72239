package uniprot_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/uniresolve/internal/adapters/uniprot"
	"github.com/Amund211/uniresolve/internal/constants"
	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/domaintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

const (
	runURL    = "https://rest.uniprot.org/idmapping/run"
	recordURL = "https://www.uniprot.org/uniprot/B3AT_HUMAN.txt"
)

func statusURL(jobID string) string {
	return "https://rest.uniprot.org/idmapping/status/" + jobID
}

type fakeResponse struct {
	statusCode int
	header     http.Header
	body       string
	err        error
}

type submission struct {
	from string
	to   string
	ids  string
}

// Serves queued responses per "METHOD URL". The last response for a URL is repeated.
type fakeHttpClient struct {
	t *testing.T

	lock        sync.Mutex
	responses   map[string][]fakeResponse
	requests    []string
	submissions []submission
}

func newFakeHttpClient(t *testing.T) *fakeHttpClient {
	return &fakeHttpClient{
		t:         t,
		responses: map[string][]fakeResponse{},
	}
}

func (f *fakeHttpClient) on(method, url string, responses ...fakeResponse) *fakeHttpClient {
	f.lock.Lock()
	defer f.lock.Unlock()
	key := method + " " + url
	f.responses[key] = append(f.responses[key], responses...)
	return f
}

func (f *fakeHttpClient) Do(req *http.Request) (*http.Response, error) {
	require.Equal(f.t, constants.USER_AGENT, req.Header.Get("User-Agent"))

	f.lock.Lock()
	defer f.lock.Unlock()

	key := req.Method + " " + req.URL.String()
	f.requests = append(f.requests, key)

	if req.Method == http.MethodPost {
		require.NoError(f.t, req.ParseMultipartForm(1<<20))
		f.submissions = append(f.submissions, submission{
			from: req.FormValue("from"),
			to:   req.FormValue("to"),
			ids:  req.FormValue("ids"),
		})
	}

	queue := f.responses[key]
	require.NotEmpty(f.t, queue, "unexpected request %s", key)
	response := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}

	if response.err != nil {
		return nil, response.err
	}

	header := response.header
	if header == nil {
		header = http.Header{}
	}

	return &http.Response{
		StatusCode: response.statusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(response.body)),
		Request:    req,
	}, nil
}

func (f *fakeHttpClient) requestsMade() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string{}, f.requests...)
}

func (f *fakeHttpClient) submitted() []submission {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]submission{}, f.submissions...)
}

type cantRead struct{}

func (c cantRead) Read(p []byte) (n int, err error) {
	return 0, assert.AnError
}

func (c cantRead) Close() error {
	return nil
}

type cantReadClient struct{}

func (c cantReadClient) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: 200, Body: cantRead{}}, nil
}

func fastPoll() uniprot.PollConfig {
	return uniprot.PollConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      1.5,
		MaxElapsedTime:  5 * time.Second,
	}
}

func newUniProt(t *testing.T, httpClient uniprot.HttpClient, poll uniprot.PollConfig) *uniprot.UniProt {
	u, err := uniprot.NewUniProt(httpClient, uniprot.DefaultEndpoints(), poll)
	require.NoError(t, err)
	return u
}

func running() fakeResponse {
	return fakeResponse{statusCode: 200, body: `{"jobStatus":"RUNNING"}`}
}

func submitted(jobID string) fakeResponse {
	return fakeResponse{statusCode: 200, body: fmt.Sprintf(`{"jobId":"%s"}`, jobID)}
}

func resultsPage(accessions ...string) fakeResponse {
	results := make([]string, 0, len(accessions))
	for _, accession := range accessions {
		results = append(results, fmt.Sprintf(
			`{"from":"B3AT_HUMAN","to":{"entryType":"UniProtKB reviewed (Swiss-Prot)","primaryAccession":"%s","uniProtkbId":"B3AT_HUMAN"}}`,
			accession,
		))
	}
	return fakeResponse{
		statusCode: 200,
		body:       fmt.Sprintf(`{"results":[%s]}`, strings.Join(results, ",")),
	}
}

func TestFetchRecord(t *testing.T) {
	t.Parallel()

	t.Run("body is returned verbatim", func(t *testing.T) {
		t.Parallel()

		text := "ID   B3AT_HUMAN              Reviewed;         911 AA.\nAC   P02730; Q13743;\n//\n"
		httpClient := newFakeHttpClient(t).on(http.MethodGet, recordURL, fakeResponse{statusCode: 200, body: text})
		u := newUniProt(t, httpClient, fastPoll())

		record, err := u.FetchRecord(t.Context(), "B3AT_HUMAN")
		require.NoError(t, err)

		require.Equal(t, domain.Record{
			Entry:      "B3AT_HUMAN",
			URL:        recordURL,
			StatusCode: 200,
			Text:       text,
		}, record)
		require.Equal(t, []string{"GET " + recordURL}, httpClient.requestsMade())
	})

	t.Run("error pages are returned as records", func(t *testing.T) {
		t.Parallel()

		url := "https://www.uniprot.org/uniprot/NOPE.txt"
		httpClient := newFakeHttpClient(t).on(http.MethodGet, url, fakeResponse{statusCode: 404, body: "Not found"})
		u := newUniProt(t, httpClient, fastPoll())

		record, err := u.FetchRecord(t.Context(), "NOPE")
		require.NoError(t, err)
		require.Equal(t, 404, record.StatusCode)
		require.Equal(t, "Not found", record.Text)
	})

	t.Run("entry is used as-is", func(t *testing.T) {
		t.Parallel()

		url := "https://www.uniprot.org/uniprot/p02730.txt"
		httpClient := newFakeHttpClient(t).on(http.MethodGet, url, fakeResponse{statusCode: 200, body: ""})
		u := newUniProt(t, httpClient, fastPoll())

		record, err := u.FetchRecord(t.Context(), "p02730")
		require.NoError(t, err)
		require.Equal(t, "", record.Text)
	})

	t.Run("custom base url", func(t *testing.T) {
		t.Parallel()

		url := "http://localhost:8000/records/B3AT_HUMAN.txt"
		httpClient := newFakeHttpClient(t).on(http.MethodGet, url, fakeResponse{statusCode: 200, body: "ID"})
		u, err := uniprot.NewUniProt(httpClient, uniprot.Endpoints{
			RecordBaseURL: "http://localhost:8000/records/",
			RESTBaseURL:   "http://localhost:8000",
		}, fastPoll())
		require.NoError(t, err)

		record, err := u.FetchRecord(t.Context(), "B3AT_HUMAN")
		require.NoError(t, err)
		require.Equal(t, url, record.URL)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		httpClient := newFakeHttpClient(t).on(http.MethodGet, recordURL, fakeResponse{err: assert.AnError})
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.FetchRecord(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("body read error", func(t *testing.T) {
		t.Parallel()

		u := newUniProt(t, cantReadClient{}, fastPoll())

		_, err := u.FetchRecord(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, assert.AnError)
	})
}

func TestResolvePrimaryAccession(t *testing.T) {
	t.Parallel()

	t.Run("polls until finished", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), running(), running(), resultsPage("P02730"))
		u := newUniProt(t, httpClient, fastPoll())

		accession, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.NoError(t, err)
		require.Equal(t, "P02730", accession)

		require.Equal(t, []submission{{from: "UniProtKB_AC-ID", to: "UniProtKB-Swiss-Prot", ids: "B3AT_HUMAN"}}, httpClient.submitted())
		require.Equal(t, []string{
			"POST " + runURL,
			"GET " + statusURL(jobID),
			"GET " + statusURL(jobID),
			"GET " + statusURL(jobID),
		}, httpClient.requestsMade())
	})

	t.Run("scalar and one element list are equivalent", func(t *testing.T) {
		t.Parallel()

		resolve := func(t *testing.T, call func(u *uniprot.UniProt) (string, error)) (string, []submission) {
			jobID := domaintest.NewJobID(t)
			httpClient := newFakeHttpClient(t).
				on(http.MethodPost, runURL, submitted(jobID)).
				on(http.MethodGet, statusURL(jobID), resultsPage("P02730"))
			u := newUniProt(t, httpClient, fastPoll())

			accession, err := call(u)
			require.NoError(t, err)
			return accession, httpClient.submitted()
		}

		scalarAccession, scalarSubmissions := resolve(t, func(u *uniprot.UniProt) (string, error) {
			return u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		})
		listAccession, listSubmissions := resolve(t, func(u *uniprot.UniProt) (string, error) {
			return u.ResolvePrimaryAccession(t.Context(), []string{"B3AT_HUMAN"})
		})

		require.Equal(t, scalarAccession, listAccession)
		require.Equal(t, scalarSubmissions, listSubmissions)
	})

	t.Run("identifiers are joined with commas", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), resultsPage("P02730"))
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccession(t.Context(), []string{"A", "B"})
		require.NoError(t, err)

		submissions := httpClient.submitted()
		require.Len(t, submissions, 1)
		require.Equal(t, "A,B", submissions[0].ids)
	})

	t.Run("first non-isoform wins", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), resultsPage("P12345-2", "P67890", "P11111"))
		u := newUniProt(t, httpClient, fastPoll())

		accession, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.NoError(t, err)
		require.Equal(t, "P67890", accession)
	})

	t.Run("only isoforms", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), resultsPage("P12345-2", "P12345-3"))
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, domain.ErrNoCanonicalAccession)
		require.NotErrorIs(t, err, domain.ErrJobTimeout)
	})

	t.Run("no results", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), fakeResponse{statusCode: 200, body: `{"results":[],"failedIds":["NOPE_HUMAN"]}`})
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "NOPE_HUMAN")
		require.ErrorIs(t, err, domain.ErrNoCanonicalAccession)
	})

	t.Run("job never finishes", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), running())

		poll := fastPoll()
		poll.MaxAttempts = 3
		u := newUniProt(t, httpClient, poll)

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, domain.ErrJobTimeout)
		require.NotErrorIs(t, err, domain.ErrNoCanonicalAccession)

		require.Len(t, httpClient.requestsMade(), 1+3)
	})

	t.Run("job never finishes within the elapsed time", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), running())

		poll := fastPoll()
		poll.MaxElapsedTime = 30 * time.Millisecond
		u := newUniProt(t, httpClient, poll)

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, domain.ErrJobTimeout)
	})

	t.Run("failed job stops polling", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), fakeResponse{
				statusCode: 200,
				body:       `{"jobStatus":"ERROR","errors":[{"code":45,"message":"Mapping failed"}]}`,
			})
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, domain.ErrJobFailed)
		require.Len(t, httpClient.requestsMade(), 2)
	})

	t.Run("malformed status stops polling", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), fakeResponse{statusCode: 200, body: `<html>`})
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, domain.ErrMalformedResponse)
		require.Len(t, httpClient.requestsMade(), 2)
	})

	t.Run("missing job id", func(t *testing.T) {
		t.Parallel()

		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, fakeResponse{statusCode: 200, body: `{"message":"ok"}`})
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, domain.ErrMalformedResponse)
		require.Equal(t, []string{"POST " + runURL}, httpClient.requestsMade())
	})

	t.Run("submit temporarily unavailable", func(t *testing.T) {
		t.Parallel()

		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, fakeResponse{statusCode: 503})
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
	})

	t.Run("temporary status errors are retried", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(
				http.MethodGet, statusURL(jobID),
				fakeResponse{statusCode: 503},
				fakeResponse{err: assert.AnError},
				resultsPage("P02730"),
			)
		u := newUniProt(t, httpClient, fastPoll())

		accession, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.NoError(t, err)
		require.Equal(t, "P02730", accession)
	})

	t.Run("redirect to results is followed", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		resultsURL := "https://rest.uniprot.org/idmapping/uniprotkb/results/" + jobID
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), fakeResponse{
				statusCode: 303,
				header:     http.Header{"Location": {"/idmapping/uniprotkb/results/" + jobID}},
			}).
			on(http.MethodGet, resultsURL, resultsPage("P02730"))
		u := newUniProt(t, httpClient, fastPoll())

		accession, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.NoError(t, err)
		require.Equal(t, "P02730", accession)
		require.Equal(t, "GET "+resultsURL, httpClient.requestsMade()[2])
	})

	t.Run("finished without results or location", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), fakeResponse{statusCode: 200, body: `{"jobStatus":"FINISHED"}`})
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.ErrorIs(t, err, domain.ErrMalformedResponse)
	})

	t.Run("result pages are followed until a match", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		page2 := "https://rest.uniprot.org/idmapping/uniprotkb/results/" + jobID + "?cursor=2&size=1"
		page3 := "https://rest.uniprot.org/idmapping/uniprotkb/results/" + jobID + "?cursor=3&size=1"

		first := resultsPage("P12345-2")
		first.header = http.Header{"Link": {fmt.Sprintf(`<%s>; rel="next"`, page2)}}
		second := resultsPage("P67890")
		second.header = http.Header{"Link": {fmt.Sprintf(`<%s>; rel="next"`, page3)}}

		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), first).
			on(http.MethodGet, page2, second)
		u := newUniProt(t, httpClient, fastPoll())

		accession, err := u.ResolvePrimaryAccessionOf(t.Context(), "B3AT_HUMAN")
		require.NoError(t, err)
		require.Equal(t, "P67890", accession)

		// Page 3 is never requested
		require.Equal(t, []string{
			"POST " + runURL,
			"GET " + statusURL(jobID),
			"GET " + page2,
		}, httpClient.requestsMade())
	})

	t.Run("no identifiers", func(t *testing.T) {
		t.Parallel()

		httpClient := newFakeHttpClient(t)
		u := newUniProt(t, httpClient, fastPoll())

		_, err := u.ResolvePrimaryAccession(t.Context(), []string{})
		require.ErrorIs(t, err, domain.ErrInvalidIdentifier)
		require.Empty(t, httpClient.requestsMade())
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).
			on(http.MethodPost, runURL, submitted(jobID)).
			on(http.MethodGet, statusURL(jobID), running())

		poll := fastPoll()
		poll.InitialInterval = time.Second
		poll.MaxInterval = time.Second
		u := newUniProt(t, httpClient, poll)

		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err := u.ResolvePrimaryAccessionOf(ctx, "B3AT_HUMAN")
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, domain.ErrJobTimeout)
	})
}

func TestCheckJob(t *testing.T) {
	t.Parallel()

	t.Run("still running", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).on(http.MethodGet, statusURL(jobID), running())
		u := newUniProt(t, httpClient, fastPoll())

		outcome, err := u.CheckJob(t.Context(), jobID)
		require.NoError(t, err)
		require.Equal(t, domain.StillRunningOutcome(jobID), outcome)
	})

	t.Run("failed ids are kept", func(t *testing.T) {
		t.Parallel()

		jobID := domaintest.NewJobID(t)
		httpClient := newFakeHttpClient(t).on(http.MethodGet, statusURL(jobID), fakeResponse{
			statusCode: 200,
			body:       `{"results":[{"from":"B3AT_HUMAN","to":{"primaryAccession":"P02730"}}],"failedIds":["NOPE_HUMAN"]}`,
		})
		u := newUniProt(t, httpClient, fastPoll())

		outcome, err := u.CheckJob(t.Context(), jobID)
		require.NoError(t, err)
		require.Equal(t, domain.MappingOutcome{
			Kind:      domain.OutcomeFound,
			JobID:     jobID,
			Accession: "P02730",
			Results: []domain.MappingResult{
				{From: "B3AT_HUMAN", To: domain.MappedEntry{PrimaryAccession: "P02730"}},
			},
			FailedIDs: []string{"NOPE_HUMAN"},
		}, outcome)
	})
}

func TestDumpResults(t *testing.T) {
	t.Parallel()

	outcome := domain.FinishedOutcome(
		"abc",
		[]domain.MappingResult{
			domaintest.NewResultBuilder("P02730-2").Build(),
			domaintest.NewResultBuilder("P02730").WithFrom("P02730").WithUniProtKBID("B3AT_HUMAN").Build(),
		},
		[]string{"NOPE_HUMAN"},
	)

	var buf bytes.Buffer
	require.NoError(t, uniprot.DumpResults(&buf, outcome))

	asJSON, err := yaml.YAMLToJSON(buf.Bytes())
	require.NoError(t, err)

	require.JSONEq(t, `{
		"jobId": "abc",
		"outcome": "found",
		"primaryAccession": "P02730",
		"results": [
			{"from": "B3AT_HUMAN", "to": {"primaryAccession": "P02730-2", "uniProtkbId": "B3AT_HUMAN", "entryType": "UniProtKB reviewed (Swiss-Prot)"}},
			{"from": "P02730", "to": {"primaryAccession": "P02730", "uniProtkbId": "B3AT_HUMAN", "entryType": "UniProtKB reviewed (Swiss-Prot)"}}
		],
		"failedIds": ["NOPE_HUMAN"]
	}`, string(asJSON))

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, uniprot.DumpResults(&buf, domain.FinishedOutcome("abc", nil, nil)))

		asJSON, err := yaml.YAMLToJSON(buf.Bytes())
		require.NoError(t, err)
		require.JSONEq(t, `{"jobId": "abc", "outcome": "not_found", "results": []}`, string(asJSON))
	})
}

func TestNewUniProt(t *testing.T) {
	t.Parallel()

	poll := uniprot.DefaultPollConfig()
	poll.Multiplier = 0

	_, err := uniprot.NewUniProt(newFakeHttpClient(t), uniprot.DefaultEndpoints(), poll)
	require.Error(t, err)
}
