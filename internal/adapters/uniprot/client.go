package uniprot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Amund211/uniresolve/internal/constants"
	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/Amund211/uniresolve/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRecordBaseURL = "https://www.uniprot.org/uniprot/"
	DefaultRESTBaseURL   = "https://rest.uniprot.org"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Endpoints struct {
	// Prefix of flat-file record URLs, including the trailing slash
	RecordBaseURL string
	RESTBaseURL   string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		RecordBaseURL: DefaultRecordBaseURL,
		RESTBaseURL:   DefaultRESTBaseURL,
	}
}

// How often, and for how long, to check on a submitted mapping job
type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration

	// Zero means no limit other than MaxElapsedTime
	MaxAttempts uint
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
		MaxElapsedTime:  2 * time.Minute,
	}
}

func (c PollConfig) validate() error {
	if c.InitialInterval <= 0 {
		return fmt.Errorf("initial interval must be positive, got %s", c.InitialInterval)
	}
	if c.MaxInterval < c.InitialInterval {
		return fmt.Errorf("max interval %s is less than initial interval %s", c.MaxInterval, c.InitialInterval)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %f", c.Multiplier)
	}
	if c.MaxElapsedTime <= 0 {
		return fmt.Errorf("max elapsed time must be positive, got %s", c.MaxElapsedTime)
	}
	return nil
}

type uniProtMetricsCollection struct {
	requestCount metric.Int64Counter
	pollCount    metric.Int64Counter
}

func setupUniProtMetrics(meter metric.Meter) (uniProtMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("uniprot/request_count")
	if err != nil {
		return uniProtMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	pollCount, err := meter.Int64Counter("uniprot/poll_count")
	if err != nil {
		return uniProtMetricsCollection{}, fmt.Errorf("failed to create poll count metric: %w", err)
	}

	return uniProtMetricsCollection{
		requestCount: requestCount,
		pollCount:    pollCount,
	}, nil
}

type UniProt struct {
	httpClient HttpClient
	endpoints  Endpoints
	poll       PollConfig

	metrics uniProtMetricsCollection
	tracer  trace.Tracer
}

func NewUniProt(httpClient HttpClient, endpoints Endpoints, poll PollConfig) (*UniProt, error) {
	const name = "uniresolve/uniprot"

	if err := poll.validate(); err != nil {
		return nil, fmt.Errorf("invalid poll config: %w", err)
	}

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupUniProtMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &UniProt{
		httpClient: httpClient,
		endpoints:  endpoints,
		poll:       poll,

		metrics: metrics,
		tracer:  tracer,
	}, nil
}

type apiResponse struct {
	statusCode int
	header     http.Header
	data       []byte

	// The URL that produced the response, after any redirects
	url *url.URL
}

func (u *UniProt) do(ctx context.Context, req *http.Request, operation string) (apiResponse, error) {
	req.Header.Set("User-Agent", constants.USER_AGENT)

	start := time.Now()
	resp, err := u.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("failed to send request: %w", err)
		if ctx.Err() == nil {
			reporting.Report(ctx, err, map[string]string{"operation": operation})
		}
		return apiResponse{}, err
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"operation": operation,
			"status":    strconv.Itoa(resp.StatusCode),
		})
		return apiResponse{}, err
	}

	u.metrics.requestCount.Add(
		ctx,
		1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status_code", strconv.Itoa(resp.StatusCode)),
		),
	)

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	logging.FromContext(ctx).InfoContext(
		ctx,
		"uniprot request completed",
		"operation", operation,
		"url", finalURL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	header := resp.Header
	if header == nil {
		header = http.Header{}
	}

	return apiResponse{
		statusCode: resp.StatusCode,
		header:     header,
		data:       data,
		url:        finalURL,
	}, nil
}
