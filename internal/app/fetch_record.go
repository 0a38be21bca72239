package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Amund211/uniresolve/internal/adapters/cache"
	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/strutils"
)

type FetchRecord func(ctx context.Context, entry string) (domain.Record, error)

type recordFetcher interface {
	FetchRecord(ctx context.Context, entry string) (domain.Record, error)
}

// Error pages for server side failures are returned, but not cached
type uncachedRecordError struct {
	record domain.Record
}

func (e *uncachedRecordError) Error() string {
	return fmt.Sprintf("record %s not cached: upstream status %d", e.record.Entry, e.record.StatusCode)
}

func isCacheableRecord(record domain.Record) bool {
	if record.StatusCode == http.StatusNotFound {
		return true
	}
	return record.StatusCode >= 200 && record.StatusCode < 300
}

func BuildFetchRecordWithCache(
	recordCache cache.Cache[domain.Record],
	fetcher recordFetcher,
) FetchRecord {
	return func(ctx context.Context, entry string) (domain.Record, error) {
		if !strutils.IdentifierIsValid(entry) {
			return domain.Record{}, fmt.Errorf("%w: %.70q", domain.ErrInvalidIdentifier, entry)
		}

		record, _, err := cache.GetOrCreate(ctx, recordCache, entry, func() (domain.Record, error) {
			record, err := fetcher.FetchRecord(ctx, entry)
			if err != nil {
				return domain.Record{}, err
			}
			if !isCacheableRecord(record) {
				return domain.Record{}, &uncachedRecordError{record: record}
			}
			return record, nil
		})
		var uncached *uncachedRecordError
		if errors.As(err, &uncached) {
			return uncached.record, nil
		}
		if err != nil {
			return domain.Record{}, fmt.Errorf("could not fetch record: %w", err)
		}

		return record, nil
	}
}
