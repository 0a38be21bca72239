package uniprot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var errStillRunning = errors.New("mapping job still running")

func (u *UniProt) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.poll.InitialInterval
	b.MaxInterval = u.poll.MaxInterval
	b.Multiplier = u.poll.Multiplier
	return b
}

// Errors that will not go away by checking again
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrMalformedResponse) ||
		errors.Is(err, domain.ErrJobFailed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Check on the job with exponential backoff until it finishes.
//
// Returns domain.ErrJobTimeout if the job is still running when the poll
// bounds are reached. Temporary failures are retried within the same bounds.
func (u *UniProt) WaitForOutcome(ctx context.Context, jobID string) (domain.MappingOutcome, error) {
	logger := logging.FromContext(ctx).With(slog.String("jobId", jobID))

	checks := 0
	outcome, err := backoff.Retry(
		ctx,
		func() (domain.MappingOutcome, error) {
			checks++

			outcome, err := u.CheckJob(ctx, jobID)
			if err != nil {
				u.metrics.pollCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
				if isPermanent(err) {
					return domain.MappingOutcome{}, backoff.Permanent(err)
				}
				return domain.MappingOutcome{}, err
			}

			u.metrics.pollCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.Kind.String())))

			if outcome.Kind == domain.OutcomeStillRunning {
				return domain.MappingOutcome{}, errStillRunning
			}
			return outcome, nil
		},
		backoff.WithBackOff(u.newBackOff()),
		backoff.WithMaxElapsedTime(u.poll.MaxElapsedTime),
		backoff.WithMaxTries(u.poll.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.InfoContext(ctx, "Checking mapping job again", slog.String("reason", err.Error()), slog.String("next", next.String()))
		}),
	)
	if errors.Is(err, errStillRunning) {
		return domain.MappingOutcome{}, fmt.Errorf("%w: job %s still running after %d checks", domain.ErrJobTimeout, jobID, checks)
	}
	if err != nil {
		return domain.MappingOutcome{}, fmt.Errorf("failed to wait for mapping job %s: %w", jobID, err)
	}

	logger.InfoContext(ctx, "Mapping job finished", slog.String("outcome", outcome.Kind.String()), slog.Int("checks", checks))

	return outcome, nil
}
