package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedTracks creates a playlist and three tracks to relate.
func seedTracks(t *testing.T, tx *Tx) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, tx.CreateResource(ctx, &Record{
		Type:  "playlists",
		ID:    "p-1",
		Attrs: map[string]any{"name": "Evening"},
	}))
	for _, id := range []string{"mt-1", "mt-2", "mt-3"} {
		require.NoError(t, tx.CreateResource(ctx, &Record{
			Type:  "musicTracks",
			ID:    id,
			Attrs: map[string]any{"title": "Track " + id},
		}))
	}
}

func TestSetToOne_SetAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := beginTx(t, s)

	require.NoError(t, tx.CreateResource(ctx, &Record{
		Type:  "recordCompanies",
		ID:    "rc-1",
		Attrs: map[string]any{"name": "Blue Note"},
	}))
	require.NoError(t, tx.CreateResource(ctx, &Record{
		Type:  "musicTracks",
		ID:    "mt-1",
		Attrs: map[string]any{"title": "T"},
	}))

	owner := "rc-1"
	require.NoError(t, tx.SetToOne(ctx, "musicTracks", "mt-1", "ownedBy", &owner))
	rec, err := tx.GetResource(ctx, "musicTracks", "mt-1")
	require.NoError(t, err)
	require.NotNil(t, rec.ToOne["ownedBy"])
	assert.Equal(t, "rc-1", *rec.ToOne["ownedBy"])

	require.NoError(t, tx.SetToOne(ctx, "musicTracks", "mt-1", "ownedBy", nil))
	rec, err = tx.GetResource(ctx, "musicTracks", "mt-1")
	require.NoError(t, err)
	assert.Nil(t, rec.ToOne["ownedBy"])
}

func TestSetToOne_OwnerNotFound(t *testing.T) {
	s := newTestStore(t)
	tx := beginTx(t, s)

	owner := "rc-1"
	err := tx.SetToOne(context.Background(), "musicTracks", "missing", "ownedBy", &owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddToMany_IsDuplicateSafe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := beginTx(t, s)
	seedTracks(t, tx)

	require.NoError(t, tx.AddToMany(ctx, "playlists", "p-1", "tracks", []string{"mt-1", "mt-2"}))
	require.NoError(t, tx.AddToMany(ctx, "playlists", "p-1", "tracks", []string{"mt-2", "mt-3"}))

	targets, err := tx.GetToMany(ctx, "playlists", "p-1", "tracks")
	require.NoError(t, err)
	assert.Equal(t, []string{"mt-1", "mt-2", "mt-3"}, targets)
}

func TestReplaceToMany_ReplacesFullSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := beginTx(t, s)
	seedTracks(t, tx)

	require.NoError(t, tx.AddToMany(ctx, "playlists", "p-1", "tracks", []string{"mt-1", "mt-2"}))
	require.NoError(t, tx.ReplaceToMany(ctx, "playlists", "p-1", "tracks", []string{"mt-3"}))

	targets, err := tx.GetToMany(ctx, "playlists", "p-1", "tracks")
	require.NoError(t, err)
	assert.Equal(t, []string{"mt-3"}, targets)

	require.NoError(t, tx.ReplaceToMany(ctx, "playlists", "p-1", "tracks", nil))
	targets, err = tx.GetToMany(ctx, "playlists", "p-1", "tracks")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestRemoveFromToMany_IgnoresUnrelatedTargets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := beginTx(t, s)
	seedTracks(t, tx)

	require.NoError(t, tx.AddToMany(ctx, "playlists", "p-1", "tracks", []string{"mt-1", "mt-2"}))
	require.NoError(t, tx.RemoveFromToMany(ctx, "playlists", "p-1", "tracks", []string{"mt-2", "mt-3"}))

	targets, err := tx.GetToMany(ctx, "playlists", "p-1", "tracks")
	require.NoError(t, err)
	assert.Equal(t, []string{"mt-1"}, targets)
}

func TestAddToMany_UnknownTargetViolatesForeignKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := beginTx(t, s)
	seedTracks(t, tx)

	err := tx.AddToMany(ctx, "playlists", "p-1", "tracks", []string{"no-such-track"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDeleteResource_CascadesJoinRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := beginTx(t, s)
	seedTracks(t, tx)

	require.NoError(t, tx.AddToMany(ctx, "playlists", "p-1", "tracks", []string{"mt-1", "mt-2"}))
	require.NoError(t, tx.DeleteResource(ctx, "musicTracks", "mt-1"))

	targets, err := tx.GetToMany(ctx, "playlists", "p-1", "tracks")
	require.NoError(t, err)
	assert.Equal(t, []string{"mt-2"}, targets)
}
