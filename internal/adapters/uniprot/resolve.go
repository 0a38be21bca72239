package uniprot

import (
	"context"
	"fmt"

	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/strutils"
)

// Submit a mapping job for the identifiers and wait for it to finish
func (u *UniProt) Map(ctx context.Context, ids []string) (domain.MappingOutcome, error) {
	if len(ids) == 0 {
		return domain.MappingOutcome{}, fmt.Errorf("%w: no identifiers", domain.ErrInvalidIdentifier)
	}

	jobID, err := u.SubmitJob(ctx, ids)
	if err != nil {
		return domain.MappingOutcome{}, err
	}

	return u.WaitForOutcome(ctx, jobID)
}

// Map the identifiers and return the first primary accession that is not an isoform.
//
// Returns domain.ErrNoCanonicalAccession when the job finished without one.
func (u *UniProt) ResolvePrimaryAccession(ctx context.Context, ids []string) (string, error) {
	outcome, err := u.Map(ctx, ids)
	if err != nil {
		return "", err
	}

	if outcome.Kind != domain.OutcomeFound {
		return "", fmt.Errorf("%w: %s", domain.ErrNoCanonicalAccession, strutils.JoinIdentifiers(ids))
	}

	return outcome.Accession, nil
}

func (u *UniProt) ResolvePrimaryAccessionOf(ctx context.Context, id string) (string, error) {
	return u.ResolvePrimaryAccession(ctx, []string{id})
}
