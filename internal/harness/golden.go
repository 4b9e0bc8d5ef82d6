package harness

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// assertGoldenResponse compares a normalized response body against
// testdata/golden/<name>.golden. Normalization re-marshals the decoded
// document with sorted keys and fixed indentation so the comparison is
// independent of struct field order.
func assertGoldenResponse(t *testing.T, name string, body []byte) {
	t.Helper()

	normalized, err := normalizeJSON(body)
	require.NoError(t, err, "normalizing response body for golden %s", name)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, normalized)
}

// normalizeJSON re-encodes a JSON document with lexicographically sorted
// object keys, two-space indentation, and a trailing newline.
func normalizeJSON(body []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
