package app

import (
	"context"
	"fmt"

	"github.com/Amund211/uniresolve/internal/adapters/cache"
	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/strutils"
)

type ResolveAccession func(ctx context.Context, identifiers []string) (string, error)

type accessionResolver interface {
	ResolvePrimaryAccession(ctx context.Context, ids []string) (string, error)
}

func BuildResolveAccessionWithCache(
	accessionCache cache.Cache[string],
	resolver accessionResolver,
) ResolveAccession {
	return func(ctx context.Context, identifiers []string) (string, error) {
		normalized, err := strutils.NormalizeIdentifiers(identifiers)
		if err != nil {
			// Client error, not reported
			return "", fmt.Errorf("%w: %w", domain.ErrInvalidIdentifier, err)
		}

		accession, _, err := cache.GetOrCreate(ctx, accessionCache, strutils.JoinIdentifiers(normalized), func() (string, error) {
			return resolver.ResolvePrimaryAccession(ctx, normalized)
		})
		if err != nil {
			// NOTE: The resolver handles its own error reporting
			return "", fmt.Errorf("could not resolve primary accession: %w", err)
		}

		return accession, nil
	}
}
