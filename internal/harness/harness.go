package harness

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openarc/strata/internal/atomic"
	"github.com/openarc/strata/internal/httpapi"
	"github.com/openarc/strata/internal/jsonapi"
	"github.com/openarc/strata/internal/schema"
	"github.com/openarc/strata/internal/store"
)

// Runner executes one scenario against a fresh store. Determinism comes
// from the sequential ID generator: a scenario's N-th created resource
// always receives the same identifier, so golden files are stable.
type Runner struct {
	handler http.Handler
	store   *store.Store
}

// NewRunner builds the stack for one scenario: schema, store, processor,
// and the HTTP handler. basePath anchors the scenario's schema path.
func NewRunner(t *testing.T, scenario *Scenario, basePath string) *Runner {
	t.Helper()

	schemaPath := scenario.Schema
	if !filepath.IsAbs(schemaPath) && basePath != "" {
		schemaPath = filepath.Join(basePath, schemaPath)
	}
	src, err := os.ReadFile(schemaPath)
	require.NoError(t, err, "reading scenario schema")

	reg, err := schema.LoadString(string(src))
	require.NoError(t, err, "compiling scenario schema")

	s, err := store.Open(filepath.Join(t.TempDir(), "scenario.db"), reg)
	require.NoError(t, err, "opening scenario store")
	t.Cleanup(func() { s.Close() })

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = "gen"
	}

	logger := slog.New(slog.DiscardHandler)
	proc := atomic.NewProcessor(s, reg,
		atomic.WithIDGenerator(atomic.NewSequentialGenerator(prefix)),
		atomic.WithProcessorLogger(logger))
	handler := httpapi.NewHandler(proc, httpapi.WithLogger(logger))

	return &Runner{handler: handler.Router(), store: s}
}

// Run replays the scenario's requests in order and evaluates the final
// state assertions. Response bodies with a golden name are compared via
// goldie; regenerate with `go test ./internal/harness -update`.
func (r *Runner) Run(t *testing.T, scenario *Scenario) {
	t.Helper()

	for i, request := range scenario.Requests {
		req := httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(request.Body))
		req.Header.Set("Content-Type", jsonapi.MediaTypeAtomic)

		rec := httptest.NewRecorder()
		r.handler.ServeHTTP(rec, req)

		require.Equal(t, request.ExpectStatus, rec.Code,
			"request %d: unexpected status, body: %s", i, rec.Body.String())

		if request.Golden != "" {
			assertGoldenResponse(t, request.Golden, rec.Body.Bytes())
		}
	}

	assertFinalState(t, r.store, scenario.FinalState)
}

// RunScenarioFile loads a scenario and runs it; schema paths resolve
// relative to the scenario file.
func RunScenarioFile(t *testing.T, path string) {
	t.Helper()

	scenario, err := LoadScenario(path)
	require.NoError(t, err, "loading scenario %s", path)

	runner := NewRunner(t, scenario, filepath.Dir(path))
	runner.Run(t, scenario)
}
