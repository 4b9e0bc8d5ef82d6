package atomic

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openarc/strata/internal/jsonapi"
	"github.com/openarc/strata/internal/schema"
	"github.com/openarc/strata/internal/store"
)

const testCatalog = `
resources: {
	recordCompanies: {
		attributes: {
			name: {type: "string"}
			countryOfResidence: {type: "string"}
		}
		relationships: {
			parent: {kind: "toOne", target: "recordCompanies"}
		}
	}
	musicTracks: {
		attributes: {
			title: {type: "string"}
			lengthInSeconds: {type: "float"}
			releasedIn: {type: "int"}
			explicit: {type: "bool"}
		}
		relationships: {
			ownedBy: {kind: "toOne", target: "recordCompanies"}
			performers: {kind: "toMany", target: "performers"}
		}
	}
	performers: {
		id: "client"
		attributes: {
			artistName: {type: "string"}
		}
	}
	playlists: {
		attributes: {
			name: {type: "string"}
		}
		relationships: {
			tracks: {kind: "toMany", target: "musicTracks"}
		}
	}
}
`

func newTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.LoadString(testCatalog)
	require.NoError(t, err)
	return reg
}

// newTestProcessor creates a processor over a fresh store with
// deterministic server IDs ("gen-1", "gen-2", ...).
func newTestProcessor(t *testing.T) (*Processor, *store.Store) {
	t.Helper()
	reg := newTestRegistry(t)

	s, err := store.Open(t.TempDir()+"/test.db", reg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	p := NewProcessor(s, reg,
		WithIDGenerator(NewSequentialGenerator("gen")),
		WithProcessorLogger(slog.New(slog.DiscardHandler)))
	return p, s
}

// decodeDoc parses a raw request body into an operations document.
func decodeDoc(t *testing.T, body string) *jsonapi.OperationsDocument {
	t.Helper()
	doc, err := jsonapi.DecodeOperationsDocument([]byte(body))
	require.NoError(t, err)
	return doc
}
