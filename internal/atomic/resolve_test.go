package atomic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOps(t *testing.T, body string) []*Operation {
	t.Helper()
	ops, err := NewParser(newTestRegistry(t)).ParseDocument(decodeDoc(t, body))
	require.Nil(t, err)
	return ops
}

func TestResolve_DeclareThenConsume(t *testing.T) {
	ops := parseOps(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "recordCompanies", "lid": "c", "attributes": {"name": "Umbrella"}}},
		{"op": "add", "data": {"type": "musicTracks",
			"relationships": {"ownedBy": {"data": {"type": "recordCompanies", "lid": "c"}}}}}
	]}`)

	tracker := NewLocalIDTracker()
	r := NewResolver(tracker)

	require.Nil(t, r.Resolve(ops[0]))
	// The executor assigns after persisting; simulate that here.
	require.NoError(t, tracker.Assign("c", "gen-1"))

	require.Nil(t, r.Resolve(ops[1]))
	owned := ops[1].RelsToOne["ownedBy"]
	assert.Equal(t, "gen-1", owned.ID)
	assert.Empty(t, owned.LID)
}

func TestResolve_ForwardReferenceFails(t *testing.T) {
	ops := parseOps(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "musicTracks",
			"relationships": {"ownedBy": {"data": {"type": "recordCompanies", "lid": "c"}}}}},
		{"op": "add", "data": {"type": "recordCompanies", "lid": "c", "attributes": {"name": "Umbrella"}}}
	]}`)

	r := NewResolver(NewLocalIDTracker())

	err := r.Resolve(ops[0])
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDNotAvailable, err.Code)
	assert.Equal(t, 400, err.Status)
	assert.Equal(t, "/atomic:operations[0]/data/relationships/ownedBy/data/lid", err.Pointer)
}

func TestResolve_DeclaredButNotYetExecuted(t *testing.T) {
	// A declared name without an assigned value resolves the same way as an
	// undeclared one.
	ops := parseOps(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "recordCompanies", "lid": "c", "attributes": {"name": "Umbrella"}}},
		{"op": "update", "data": {"type": "recordCompanies", "lid": "c", "attributes": {"name": "Renamed"}}}
	]}`)

	tracker := NewLocalIDTracker()
	r := NewResolver(tracker)

	require.Nil(t, r.Resolve(ops[0]))
	// No Assign: the create has not executed.

	err := r.Resolve(ops[1])
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDNotAvailable, err.Code)
	assert.Equal(t, "/atomic:operations[1]/data/lid", err.Pointer)
}

func TestResolve_SelfReference(t *testing.T) {
	ops := parseOps(t, `{"atomic:operations": [{
		"op": "add",
		"data": {"type": "recordCompanies", "lid": "c",
			"relationships": {"parent": {"data": {"type": "recordCompanies", "lid": "c"}}}}
	}]}`)

	err := NewResolver(NewLocalIDTracker()).Resolve(ops[0])
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDSelfUse, err.Code)
	assert.Equal(t, 400, err.Status)
	assert.Equal(t, "Local ID cannot be both defined and used within the same operation.", err.Title)
	assert.Equal(t, "/atomic:operations[0]", err.Pointer)
}

func TestResolve_RedeclarationFails(t *testing.T) {
	ops := parseOps(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "recordCompanies", "lid": "c", "attributes": {"name": "A"}}},
		{"op": "add", "data": {"type": "playlists", "lid": "c", "attributes": {"name": "B"}}}
	]}`)

	tracker := NewLocalIDTracker()
	r := NewResolver(tracker)

	require.Nil(t, r.Resolve(ops[0]))
	require.NoError(t, tracker.Assign("c", "gen-1"))

	err := r.Resolve(ops[1])
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDConflict, err.Code)
	assert.Equal(t, "/atomic:operations[1]", err.Pointer)
}

func TestResolve_TypeMismatch(t *testing.T) {
	ops := parseOps(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "playlists", "lid": "p", "attributes": {"name": "Morning"}}},
		{"op": "add", "data": {"type": "musicTracks",
			"relationships": {"ownedBy": {"data": {"type": "recordCompanies", "lid": "p"}}}}}
	]}`)

	tracker := NewLocalIDTracker()
	r := NewResolver(tracker)

	require.Nil(t, r.Resolve(ops[0]))
	require.NoError(t, tracker.Assign("p", "gen-1"))

	err := r.Resolve(ops[1])
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDTypeMismatch, err.Code)
	assert.Equal(t, "/atomic:operations[1]/data/relationships/ownedBy/data/lid", err.Pointer)
}

func TestResolve_TargetOfDeleteByLid(t *testing.T) {
	ops := parseOps(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "playlists", "lid": "p", "attributes": {"name": "Morning"}}},
		{"op": "remove", "ref": {"type": "playlists", "lid": "p"}}
	]}`)

	tracker := NewLocalIDTracker()
	r := NewResolver(tracker)

	require.Nil(t, r.Resolve(ops[0]))
	require.NoError(t, tracker.Assign("p", "gen-1"))

	require.Nil(t, r.Resolve(ops[1]))
	assert.Equal(t, "gen-1", ops[1].Target.ID)
	assert.Empty(t, ops[1].Target.LID)
}
