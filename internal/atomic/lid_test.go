package atomic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalIDTracker_DeclareAssignResolve(t *testing.T) {
	reg := newTestRegistry(t)
	tracks, _ := reg.LookupType("musicTracks")

	tr := NewLocalIDTracker()
	require.Nil(t, tr.Declare("track-1", tracks))
	require.NoError(t, tr.Assign("track-1", "gen-1"))

	typ, id, err := tr.Resolve("track-1")
	require.Nil(t, err)
	assert.Same(t, tracks, typ)
	assert.Equal(t, "gen-1", id)
}

func TestLocalIDTracker_RedeclareIsConflict(t *testing.T) {
	reg := newTestRegistry(t)
	tracks, _ := reg.LookupType("musicTracks")
	companies, _ := reg.LookupType("recordCompanies")

	tr := NewLocalIDTracker()
	require.Nil(t, tr.Declare("shared", tracks))

	// Redeclaration conflicts regardless of resource type.
	err := tr.Declare("shared", companies)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDConflict, err.Code)
	assert.Equal(t, 400, err.Status)
	assert.Equal(t, "Another local ID with the same name is already defined at this point.", err.Title)
}

func TestLocalIDTracker_ResolveUndeclared(t *testing.T) {
	tr := NewLocalIDTracker()

	_, _, err := tr.Resolve("ghost")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDNotAvailable, err.Code)
	assert.Equal(t, "Server-generated value for local ID is not available at this point.", err.Title)
}

func TestLocalIDTracker_ResolveDeclaredButUnassigned(t *testing.T) {
	reg := newTestRegistry(t)
	tracks, _ := reg.LookupType("musicTracks")

	tr := NewLocalIDTracker()
	require.Nil(t, tr.Declare("track-1", tracks))

	_, _, err := tr.Resolve("track-1")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDNotAvailable, err.Code)
}

func TestLocalIDTracker_AssignUndeclaredIsInternal(t *testing.T) {
	tr := NewLocalIDTracker()
	assert.Error(t, tr.Assign("ghost", "gen-1"))
}

func TestLocalIDTracker_CheckType(t *testing.T) {
	reg := newTestRegistry(t)
	tracks, _ := reg.LookupType("musicTracks")
	companies, _ := reg.LookupType("recordCompanies")

	tr := NewLocalIDTracker()
	require.Nil(t, tr.Declare("track-1", tracks))

	assert.Nil(t, tr.CheckType("track-1", tracks))
	assert.Nil(t, tr.CheckType("undeclared", companies))

	err := tr.CheckType("track-1", companies)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDTypeMismatch, err.Code)
	assert.Equal(t, "Local ID 'track-1' belongs to resource type 'musicTracks' instead of 'recordCompanies'.", err.Detail)
}

func TestLocalIDTracker_NamesAreNFCNormalized(t *testing.T) {
	reg := newTestRegistry(t)
	tracks, _ := reg.LookupType("musicTracks")

	precomposed := "caf\u00e9"
	decomposed := "cafe\u0301"

	tr := NewLocalIDTracker()
	require.Nil(t, tr.Declare(precomposed, tracks))

	// The decomposed spelling names the same local ID.
	err := tr.Declare(decomposed, tracks)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDConflict, err.Code)

	require.NoError(t, tr.Assign(precomposed, "gen-9"))
	_, id, rerr := tr.Resolve(decomposed)
	require.Nil(t, rerr)
	assert.Equal(t, "gen-9", id)
}
