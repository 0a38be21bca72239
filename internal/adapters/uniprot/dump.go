package uniprot

import (
	"fmt"
	"io"

	"github.com/Amund211/uniresolve/internal/domain"
	"sigs.k8s.io/yaml"
)

type dumpedEntry struct {
	PrimaryAccession string `json:"primaryAccession"`
	UniProtKBID      string `json:"uniProtkbId,omitempty"`
	EntryType        string `json:"entryType,omitempty"`
}

type dumpedResult struct {
	From string      `json:"from"`
	To   dumpedEntry `json:"to"`
}

type dumpedOutcome struct {
	JobID            string         `json:"jobId"`
	Outcome          string         `json:"outcome"`
	PrimaryAccession string         `json:"primaryAccession,omitempty"`
	Results          []dumpedResult `json:"results"`
	FailedIDs        []string       `json:"failedIds,omitempty"`
}

// Write the mapping results of a finished job as YAML
func DumpResults(w io.Writer, outcome domain.MappingOutcome) error {
	results := make([]dumpedResult, 0, len(outcome.Results))
	for _, result := range outcome.Results {
		results = append(results, dumpedResult{
			From: result.From,
			To: dumpedEntry{
				PrimaryAccession: result.To.PrimaryAccession,
				UniProtKBID:      result.To.UniProtKBID,
				EntryType:        result.To.EntryType,
			},
		})
	}

	data, err := yaml.Marshal(dumpedOutcome{
		JobID:            outcome.JobID,
		Outcome:          outcome.Kind.String(),
		PrimaryAccession: outcome.Accession,
		Results:          results,
		FailedIDs:        outcome.FailedIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	return nil
}
