package atomic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openarc/strata/internal/store"
)

func TestProcess_CreateChainWithLocalIDs(t *testing.T) {
	p, s := newTestProcessor(t)
	ctx := context.Background()

	results, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "recordCompanies", "lid": "company-1",
			"attributes": {"name": "Umbrella Records", "countryOfResidence": "NL"}}},
		{"op": "add", "data": {"type": "musicTracks",
			"attributes": {"title": "Crazy"},
			"relationships": {"ownedBy": {"data": {"type": "recordCompanies", "lid": "company-1"}}}}}
	]}`))
	require.Nil(t, err)
	require.Len(t, results, 2)

	company := results[0].Data
	track := results[1].Data
	require.NotNil(t, company)
	require.NotNil(t, track)
	assert.Equal(t, "recordCompanies", company.Type)
	assert.Equal(t, "gen-1", *company.ID)
	assert.Nil(t, company.Lid)
	assert.Equal(t, "musicTracks", track.Type)
	assert.Equal(t, "gen-2", *track.ID)
	assert.Nil(t, track.Lid)

	// The persisted track's owner is the persisted company.
	tx, terr := s.Begin(ctx)
	require.NoError(t, terr)
	defer tx.Rollback()
	rec, terr := tx.GetResource(ctx, "musicTracks", "gen-2")
	require.NoError(t, terr)
	require.NotNil(t, rec.ToOne["ownedBy"])
	assert.Equal(t, "gen-1", *rec.ToOne["ownedBy"])
}

func TestProcess_CreateRepresentationListsAllAttributes(t *testing.T) {
	p, _ := newTestProcessor(t)

	results, err := p.Process(context.Background(), decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "musicTracks", "attributes": {"title": "Crazy"}}}
	]}`))
	require.Nil(t, err)

	attrs := results[0].Data.Attributes
	assert.Equal(t, "Crazy", attrs["title"])
	require.Contains(t, attrs, "lengthInSeconds")
	assert.Nil(t, attrs["lengthInSeconds"])
	require.Contains(t, attrs, "releasedIn")
	assert.Nil(t, attrs["releasedIn"])
	require.Contains(t, attrs, "explicit")
	assert.Nil(t, attrs["explicit"])
}

func TestProcess_LocalIDRedefinition(t *testing.T) {
	p, s := newTestProcessor(t)
	ctx := context.Background()

	_, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "playlists", "lid": "p1", "attributes": {"name": "Morning"}}},
		{"op": "add", "data": {"type": "playlists", "lid": "p1", "attributes": {"name": "Evening"}}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDConflict, err.Code)
	assert.Equal(t, "/atomic:operations[1]", err.Pointer)

	assertResourceAbsent(t, s, "playlists", "gen-1")
}

func TestProcess_SelfReference(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.Process(context.Background(), decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "recordCompanies", "lid": "c1",
			"attributes": {"name": "Ouroboros"},
			"relationships": {"parent": {"data": {"type": "recordCompanies", "lid": "c1"}}}}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDSelfUse, err.Code)
	assert.Equal(t, "/atomic:operations[0]", err.Pointer)
}

func TestProcess_FirstFailureWinsAndRollsBack(t *testing.T) {
	p, s := newTestProcessor(t)
	ctx := context.Background()

	// The first operation creates, the second fails; nothing persists.
	_, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "playlists", "attributes": {"name": "Morning"}}},
		{"op": "remove", "ref": {"type": "musicTracks", "id": "does-not-exist"}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeResourceNotFound, err.Code)
	assert.Equal(t, 404, err.Status)
	assert.Equal(t, "/atomic:operations[1]", err.Pointer)

	assertResourceAbsent(t, s, "playlists", "gen-1")
}

func TestProcess_ConflictingIDValue(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.Process(context.Background(), decodeDoc(t, `{"atomic:operations": [
		{"op": "update",
		 "ref": {"type": "musicTracks", "id": "track-1"},
		 "data": {"type": "musicTracks", "id": "track-2", "attributes": {"title": "Renamed"}}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeConflictingIDValue, err.Code)
	assert.Equal(t, "/atomic:operations[0]/data/id", err.Pointer)
	assert.Contains(t, err.Detail, "track-1")
	assert.Contains(t, err.Detail, "track-2")
}

func TestProcess_CreateThenDeleteByLid(t *testing.T) {
	p, s := newTestProcessor(t)
	ctx := context.Background()

	results, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "musicTracks", "lid": "t1", "attributes": {"title": "Ephemeral"}}},
		{"op": "remove", "ref": {"type": "musicTracks", "lid": "t1"}}
	]}`))
	require.Nil(t, err)
	require.Len(t, results, 2)
	assert.NotNil(t, results[0].Data)
	assert.Nil(t, results[1].Data)

	assertResourceAbsent(t, s, "musicTracks", "gen-1")
}

func TestProcess_UpdateReturnsNullResult(t *testing.T) {
	p, s := newTestProcessor(t)
	ctx := context.Background()

	_, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "playlists", "attributes": {"name": "Morning"}}}
	]}`))
	require.Nil(t, err)

	results, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "update", "data": {"type": "playlists", "id": "gen-1", "attributes": {"name": "Evening"}}}
	]}`))
	require.Nil(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Data)

	tx, terr := s.Begin(ctx)
	require.NoError(t, terr)
	defer tx.Rollback()
	rec, terr := tx.GetResource(ctx, "playlists", "gen-1")
	require.NoError(t, terr)
	assert.Equal(t, "Evening", rec.Attrs["name"])
}

func TestProcess_UpdateMissingResource(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.Process(context.Background(), decodeDoc(t, `{"atomic:operations": [
		{"op": "update", "data": {"type": "playlists", "id": "ghost", "attributes": {"name": "x"}}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeResourceNotFound, err.Code)
	assert.Equal(t, "/atomic:operations[0]", err.Pointer)
}

func TestProcess_RelationshipLifecycle(t *testing.T) {
	p, s := newTestProcessor(t)
	ctx := context.Background()

	results, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "musicTracks", "lid": "t1", "attributes": {"title": "One"}}},
		{"op": "add", "data": {"type": "musicTracks", "lid": "t2", "attributes": {"title": "Two"}}},
		{"op": "add", "data": {"type": "playlists", "lid": "pl", "attributes": {"name": "Mix"}}},
		{"op": "update", "ref": {"type": "playlists", "lid": "pl", "relationship": "tracks"},
		 "data": [{"type": "musicTracks", "lid": "t1"}]},
		{"op": "add", "ref": {"type": "playlists", "lid": "pl", "relationship": "tracks"},
		 "data": [{"type": "musicTracks", "lid": "t2"}, {"type": "musicTracks", "lid": "t1"}]},
		{"op": "remove", "ref": {"type": "playlists", "lid": "pl", "relationship": "tracks"},
		 "data": [{"type": "musicTracks", "lid": "t1"}]}
	]}`))
	require.Nil(t, err)
	require.Len(t, results, 6)
	for i := 3; i < 6; i++ {
		assert.Nil(t, results[i].Data, "relationship operation %d should have a null result", i)
	}

	// t1 was set, re-added (duplicate-safe), and removed; only t2 remains.
	tx, terr := s.Begin(ctx)
	require.NoError(t, terr)
	defer tx.Rollback()
	rec, terr := tx.GetResource(ctx, "playlists", "gen-3")
	require.NoError(t, terr)
	assert.Equal(t, []string{"gen-2"}, rec.ToMany["tracks"])
}

func TestProcess_SetToOneRelationshipToNull(t *testing.T) {
	p, s := newTestProcessor(t)
	ctx := context.Background()

	_, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "recordCompanies", "lid": "c", "attributes": {"name": "Umbrella"}}},
		{"op": "add", "data": {"type": "musicTracks", "lid": "t", "attributes": {"title": "Crazy"},
			"relationships": {"ownedBy": {"data": {"type": "recordCompanies", "lid": "c"}}}}},
		{"op": "update", "ref": {"type": "musicTracks", "lid": "t", "relationship": "ownedBy"},
		 "data": null}
	]}`))
	require.Nil(t, err)

	tx, terr := s.Begin(ctx)
	require.NoError(t, terr)
	defer tx.Rollback()
	rec, terr := tx.GetResource(ctx, "musicTracks", "gen-2")
	require.NoError(t, terr)
	assert.Nil(t, rec.ToOne["ownedBy"])
}

func TestProcess_ClientGeneratedID(t *testing.T) {
	p, s := newTestProcessor(t)
	ctx := context.Background()

	results, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "performers", "id": "bowie", "attributes": {"artistName": "David Bowie"}}}
	]}`))
	require.Nil(t, err)
	assert.Equal(t, "bowie", *results[0].Data.ID)

	// The same id again conflicts on the primary key.
	_, err = p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "performers", "id": "bowie", "attributes": {"artistName": "Impostor"}}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodePersistenceConflict, err.Code)
	assert.Equal(t, 409, err.Status)
	assert.Equal(t, "/atomic:operations[0]", err.Pointer)

	tx, terr := s.Begin(ctx)
	require.NoError(t, terr)
	defer tx.Rollback()
	rec, terr := tx.GetResource(ctx, "performers", "bowie")
	require.NoError(t, terr)
	assert.Equal(t, "David Bowie", rec.Attrs["artistName"])
}

func TestProcess_DanglingLinkageIs404(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.Process(context.Background(), decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "musicTracks", "attributes": {"title": "Orphan"},
			"relationships": {"ownedBy": {"data": {"type": "recordCompanies", "id": "ghost"}}}}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeResourceNotFound, err.Code)
	assert.Equal(t, "/atomic:operations[0]", err.Pointer)
}

func TestProcess_RoundTripAcrossBatches(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	results, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "playlists", "attributes": {"name": "Morning"}}}
	]}`))
	require.Nil(t, err)
	id := *results[0].Data.ID

	// The returned identifier addresses the resource in a later batch.
	results, err = p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "remove", "ref": {"type": "playlists", "id": "`+id+`"}}
	]}`))
	require.Nil(t, err)
	assert.Nil(t, results[0].Data)
}

func TestProcess_LocalIDsDoNotLeakAcrossBatches(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	_, err := p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "playlists", "lid": "p1", "attributes": {"name": "Morning"}}}
	]}`))
	require.Nil(t, err)

	_, err = p.Process(ctx, decodeDoc(t, `{"atomic:operations": [
		{"op": "remove", "ref": {"type": "playlists", "lid": "p1"}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeLocalIDNotAvailable, err.Code)
}

func TestProcess_ParseFailureSkipsPersistence(t *testing.T) {
	p, s := newTestProcessor(t)

	// A later malformed operation aborts before anything executes.
	_, err := p.Process(context.Background(), decodeDoc(t, `{"atomic:operations": [
		{"op": "add", "data": {"type": "playlists", "attributes": {"name": "Morning"}}},
		{"op": "add", "data": {"type": "doesNotExist"}}
	]}`))
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeUnknownResourceType, err.Code)

	assertResourceAbsent(t, s, "playlists", "gen-1")
}

func assertResourceAbsent(t *testing.T, s *store.Store, resourceType, id string) {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	exists, err := tx.ResourceExists(context.Background(), resourceType, id)
	require.NoError(t, err)
	assert.False(t, exists)
}
