package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvision/fieldvision/internal/directory"
)

// TestMemoryDirectory_RegisterAndLookup tests the basic round trip.
func TestMemoryDirectory_RegisterAndLookup(t *testing.T) {
	// Setup
	dir := directory.NewMemoryDirectory()
	ctx := context.Background()
	registered := time.Now().UTC()

	require.NoError(t, dir.Register(ctx, &directory.TargetInfo{
		ID:           "camera-7",
		Name:         "Gate 7 camera",
		Active:       true,
		RegisteredAt: registered,
	}))

	// Execute
	info, err := dir.Lookup(ctx, "camera-7")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "camera-7", info.ID)
	assert.Equal(t, "Gate 7 camera", info.Name)
	assert.True(t, info.Active)
	assert.Equal(t, registered, info.RegisteredAt)
}

// TestMemoryDirectory_LookupUnknown tests the not-found error.
func TestMemoryDirectory_LookupUnknown(t *testing.T) {
	dir := directory.NewMemoryDirectory()

	_, err := dir.Lookup(context.Background(), "camera-404")

	assert.ErrorIs(t, err, directory.ErrTargetNotFound)
}

// TestMemoryDirectory_RegisterReplaces tests that re-registering an id
// replaces the record, which is how targets get deactivated.
func TestMemoryDirectory_RegisterReplaces(t *testing.T) {
	// Setup
	dir := directory.NewMemoryDirectory()
	ctx := context.Background()
	require.NoError(t, dir.Register(ctx, &directory.TargetInfo{ID: "camera-7", Name: "Gate 7 camera", Active: true}))

	// Execute
	require.NoError(t, dir.Register(ctx, &directory.TargetInfo{ID: "camera-7", Name: "Gate 7 camera", Active: false}))

	// Assert
	info, err := dir.Lookup(ctx, "camera-7")
	require.NoError(t, err)
	assert.False(t, info.Active)
}

// TestMemoryDirectory_ListSorted tests that listings come back ordered by id.
func TestMemoryDirectory_ListSorted(t *testing.T) {
	// Setup
	dir := directory.NewMemoryDirectory()
	ctx := context.Background()
	for _, id := range []string{"camera-9", "camera-1", "camera-5"} {
		require.NoError(t, dir.Register(ctx, &directory.TargetInfo{ID: id, Active: true}))
	}

	// Execute
	targets, err := dir.List(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, "camera-1", targets[0].ID)
	assert.Equal(t, "camera-5", targets[1].ID)
	assert.Equal(t, "camera-9", targets[2].ID)
}

// TestMemoryDirectory_LookupIsolatesCaller tests that mutating a returned
// record does not touch the stored one.
func TestMemoryDirectory_LookupIsolatesCaller(t *testing.T) {
	// Setup
	dir := directory.NewMemoryDirectory()
	ctx := context.Background()
	require.NoError(t, dir.Register(ctx, &directory.TargetInfo{ID: "camera-7", Active: true}))

	// Execute
	info, err := dir.Lookup(ctx, "camera-7")
	require.NoError(t, err)
	info.Active = false

	// Assert
	again, err := dir.Lookup(ctx, "camera-7")
	require.NoError(t, err)
	assert.True(t, again.Active)
}
