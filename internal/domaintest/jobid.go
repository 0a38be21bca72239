package domaintest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// A random lowercase hex id shaped like the ones the mapping service hands out
func NewJobID(t *testing.T) string {
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	return strings.ReplaceAll(id.String(), "-", "")
}
