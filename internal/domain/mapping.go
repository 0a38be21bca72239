package domain

import "strings"

// The UniProtKB entry a submitted identifier was mapped to
type MappedEntry struct {
	PrimaryAccession string
	UniProtKBID      string
	EntryType        string
}

type MappingResult struct {
	From string
	To   MappedEntry
}

// Isoform accessions carry a suffix like P02730-2
func IsIsoform(accession string) bool {
	return strings.Contains(accession, "-")
}

// Returns the primary accession of the first result, in order, that is not an isoform.
//
// Returns false if there are no results, or if all of them are isoforms.
func FirstCanonicalAccession(results []MappingResult) (string, bool) {
	for _, result := range results {
		if !IsIsoform(result.To.PrimaryAccession) {
			return result.To.PrimaryAccession, true
		}
	}
	return "", false
}

type JobStatus string

const (
	JobStatusNew      JobStatus = "NEW"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusFinished JobStatus = "FINISHED"
	JobStatusError    JobStatus = "ERROR"
	JobStatusUnknown  JobStatus = "UNKNOWN"
)

func ParseJobStatus(raw string) JobStatus {
	switch JobStatus(raw) {
	case JobStatusNew, JobStatusRunning, JobStatusFinished, JobStatusError:
		return JobStatus(raw)
	default:
		return JobStatusUnknown
	}
}

// Pending reports whether the service is still working on the job
func (s JobStatus) Pending() bool {
	return s == JobStatusNew || s == JobStatusRunning
}

type OutcomeKind int

const (
	OutcomeStillRunning OutcomeKind = iota
	OutcomeFound
	OutcomeNotFound
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStillRunning:
		return "still_running"
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	}
	return "unknown"
}

// The state of a mapping job as observed by a single status check
type MappingOutcome struct {
	Kind  OutcomeKind
	JobID string

	// Only set when Kind is OutcomeFound
	Accession string

	Results   []MappingResult
	FailedIDs []string
}

func StillRunningOutcome(jobID string) MappingOutcome {
	return MappingOutcome{
		Kind:  OutcomeStillRunning,
		JobID: jobID,
	}
}

func FinishedOutcome(jobID string, results []MappingResult, failedIDs []string) MappingOutcome {
	accession, found := FirstCanonicalAccession(results)
	if !found {
		return MappingOutcome{
			Kind:      OutcomeNotFound,
			JobID:     jobID,
			Results:   results,
			FailedIDs: failedIDs,
		}
	}

	return MappingOutcome{
		Kind:      OutcomeFound,
		JobID:     jobID,
		Accession: accession,
		Results:   results,
		FailedIDs: failedIDs,
	}
}
