package domain

import "errors"

var (
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrNoCanonicalAccession   = errors.New("no canonical accession found")
	ErrJobTimeout             = errors.New("mapping job did not finish in time")
	ErrJobFailed              = errors.New("mapping job failed")
	ErrMalformedResponse      = errors.New("malformed response")
	ErrInvalidIdentifier      = errors.New("invalid identifier")
)
