package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/uniresolve/internal/adapters/cache"
	"github.com/Amund211/uniresolve/internal/adapters/uniprot"
	"github.com/Amund211/uniresolve/internal/app"
	"github.com/Amund211/uniresolve/internal/config"
	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/Amund211/uniresolve/internal/ports"
	"github.com/Amund211/uniresolve/internal/reporting"
	"github.com/Amund211/uniresolve/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "uniresolve"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := uuid.New().String()
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
	logger := slog.New(handler).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	if config.GCPProjectID() != "" {
		handler = logging.NewCloudTraceLogHandler(handler, config.GCPProjectID())
		logger = slog.New(handler).With("instanceID", instanceID)
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if config.OTelEnabled() {
		shutdown, err := telemetry.SetupOTelSDK(ctx, serviceName)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   10 * time.Second,
	}

	poll := uniprot.DefaultPollConfig()
	poll.MaxElapsedTime = config.PollTimeout()
	poll.InitialInterval = config.PollInitialInterval()
	poll.MaxInterval = config.PollMaxInterval()

	uniProt, err := uniprot.NewUniProt(httpClient, uniprot.DefaultEndpoints(), poll)
	if err != nil {
		fail("Failed to initialize UniProt client", "error", err.Error())
	}
	logger.Info("Initialized UniProt client")

	// Accessions of existing entries are stable
	accessionCache := cache.NewTTLCache[string](24 * time.Hour)
	recordCache := cache.NewTTLCache[domain.Record](10 * time.Minute)

	resolveAccession := app.BuildResolveAccessionWithCache(accessionCache, uniProt)
	fetchRecord := app.BuildFetchRecordWithCache(recordCache, uniProt)

	allowedOrigins, err := ports.NewDomainSuffixes(config.AllowedOrigins()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	resolveAccessionHandler := ports.MakeResolveAccessionHandler(
		resolveAccession,
		allowedOrigins,
		logger.With("port", "accession"),
		sentryMiddleware,
	)

	mux := http.NewServeMux()

	mux.HandleFunc("OPTIONS /v1/accession/{identifier}", ports.BuildCORSHandler(allowedOrigins))
	mux.HandleFunc("GET /v1/accession/{identifier}", resolveAccessionHandler)

	mux.HandleFunc("OPTIONS /v1/accession", ports.BuildCORSHandler(allowedOrigins))
	mux.HandleFunc("GET /v1/accession", resolveAccessionHandler)

	mux.HandleFunc("OPTIONS /v1/record/{identifier}", ports.BuildCORSHandler(allowedOrigins))
	mux.HandleFunc(
		"GET /v1/record/{identifier}",
		ports.MakeFetchRecordHandler(
			fetchRecord,
			allowedOrigins,
			logger.With("port", "record"),
			sentryMiddleware,
		),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
