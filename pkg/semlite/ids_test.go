package semlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIDContentDerived(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.resolveID(ctx, "some stable text")
	require.NoError(t, err)

	// Content-derived: the same text resolves to the same base id while it
	// is not yet stored.
	again, err := db.resolveID(ctx, "some stable text")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	// And it is a well-formed UUID.
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

func TestResolveIDCountsPastLiveEntries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id1, err := db.Insert(ctx, "repeated text", nil)
	require.NoError(t, err)
	id2, err := db.Insert(ctx, "repeated text", nil)
	require.NoError(t, err)
	id3, err := db.Insert(ctx, "repeated text", nil)
	require.NoError(t, err)

	assert.Equal(t, id1+"-2", id2)
	assert.Equal(t, id1+"-3", id3)

	// Deleting the middle entry frees its slot for the next anonymous
	// insert of the same text.
	_, err = db.Delete(ctx, id2)
	require.NoError(t, err)

	id4, err := db.Insert(ctx, "repeated text", nil)
	require.NoError(t, err)
	assert.Equal(t, id2, id4)
}

func TestResolveIDDistinctTexts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a, err := db.resolveID(ctx, "one text")
	require.NoError(t, err)
	b, err := db.resolveID(ctx, "another text")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
