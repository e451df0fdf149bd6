package verifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/verifier"
)

func TestGenerate_Distinct(t *testing.T) {
	a, err := verifier.Generate()
	require.NoError(t, err)
	b, err := verifier.Generate()
	require.NoError(t, err)

	assert.Len(t, a.Bytes(), 8)
	assert.NotEqual(t, a, verifier.Verifier{}, "verifier must not be the zero value")
	assert.NotEqual(t, a, b, "two verifiers generated in the same process should differ")
}
