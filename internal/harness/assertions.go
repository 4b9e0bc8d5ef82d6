package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openarc/strata/internal/store"
)

// assertFinalState verifies every state assertion against the store
// after all requests have been replayed.
func assertFinalState(t *testing.T, s *store.Store, checks []StateAssertion) {
	t.Helper()
	if len(checks) == 0 {
		return
	}

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	for i, check := range checks {
		rec, err := tx.GetResource(ctx, check.Type, check.ID)

		if check.Absent {
			assert.ErrorIs(t, err, store.ErrNotFound,
				"final_state[%d]: %s/%s should not exist", i, check.Type, check.ID)
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			t.Errorf("final_state[%d]: %s/%s does not exist", i, check.Type, check.ID)
			continue
		}
		require.NoError(t, err, "final_state[%d]: reading %s/%s", i, check.Type, check.ID)

		for name, want := range check.Attributes {
			if want == nil {
				assert.Nil(t, rec.Attrs[name],
					"final_state[%d]: attribute %q", i, name)
				continue
			}
			assert.EqualValues(t, want, rec.Attrs[name],
				"final_state[%d]: attribute %q", i, name)
		}

		for name, want := range check.ToOne {
			got := rec.ToOne[name]
			if want == nil {
				assert.Nil(t, got, "final_state[%d]: to-one %q should be cleared", i, name)
				continue
			}
			if assert.NotNil(t, got, "final_state[%d]: to-one %q is not set", i, name) {
				assert.Equal(t, *want, *got, "final_state[%d]: to-one %q", i, name)
			}
		}

		for name, want := range check.ToMany {
			assert.ElementsMatch(t, want, rec.ToMany[name],
				"final_state[%d]: to-many %q", i, name)
		}
	}
}
