package domaintest

import (
	"github.com/Amund211/uniresolve/internal/domain"
)

type resultBuilder struct {
	result domain.MappingResult
}

func (rb *resultBuilder) WithFrom(from string) *resultBuilder {
	rb.result.From = from
	return rb
}

func (rb *resultBuilder) WithUniProtKBID(id string) *resultBuilder {
	rb.result.To.UniProtKBID = id
	return rb
}

func (rb *resultBuilder) Build() domain.MappingResult {
	return rb.result
}

func NewResultBuilder(primaryAccession string) *resultBuilder {
	return &resultBuilder{
		result: domain.MappingResult{
			From: "B3AT_HUMAN",
			To: domain.MappedEntry{
				PrimaryAccession: primaryAccession,
				UniProtKBID:      "B3AT_HUMAN",
				EntryType:        "UniProtKB reviewed (Swiss-Prot)",
			},
		},
	}
}
