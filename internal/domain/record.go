package domain

// A UniProt flat-file entry.
//
// Text is the raw response body. It is not parsed, and is kept even when the
// service answered with an error page.
type Record struct {
	Entry      string
	URL        string
	StatusCode int
	Text       string
}
