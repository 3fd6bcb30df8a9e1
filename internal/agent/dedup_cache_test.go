package agent_test

import (
	"testing"

	"github.com/fieldvision/fieldvision/internal/agent"
	"github.com/stretchr/testify/assert"
)

// TestDedupCache_AddAndContains tests basic membership.
func TestDedupCache_AddAndContains(t *testing.T) {
	cache := agent.NewDedupCache(4)

	assert.False(t, cache.Contains("cmd-1"))

	cache.Add("cmd-1")

	assert.True(t, cache.Contains("cmd-1"))
	assert.False(t, cache.Contains("cmd-2"))
	assert.Equal(t, 1, cache.Len())
}

// TestDedupCache_EvictsOldest tests capacity-bounded eviction.
func TestDedupCache_EvictsOldest(t *testing.T) {
	// Setup
	cache := agent.NewDedupCache(2)
	cache.Add("cmd-1")
	cache.Add("cmd-2")

	// Execute
	cache.Add("cmd-3")

	// Assert
	assert.False(t, cache.Contains("cmd-1"))
	assert.True(t, cache.Contains("cmd-2"))
	assert.True(t, cache.Contains("cmd-3"))
	assert.Equal(t, 2, cache.Len())
}

// TestDedupCache_ReAddRefreshes tests that re-adding a held id protects it
// from the next eviction.
func TestDedupCache_ReAddRefreshes(t *testing.T) {
	// Setup
	cache := agent.NewDedupCache(2)
	cache.Add("cmd-1")
	cache.Add("cmd-2")

	// Execute: touch cmd-1, then push a third id.
	cache.Add("cmd-1")
	cache.Add("cmd-3")

	// Assert: cmd-2 was the oldest and fell out.
	assert.True(t, cache.Contains("cmd-1"))
	assert.False(t, cache.Contains("cmd-2"))
	assert.True(t, cache.Contains("cmd-3"))
}

// TestDedupCache_SnapshotAndRestore tests the persistence round trip keeps
// order and eviction behavior.
func TestDedupCache_SnapshotAndRestore(t *testing.T) {
	// Setup
	cache := agent.NewDedupCache(4)
	cache.Add("cmd-1")
	cache.Add("cmd-2")
	cache.Add("cmd-3")

	// Execute
	snapshot := cache.Snapshot()
	restored := agent.NewDedupCache(4)
	restored.Restore(snapshot)

	// Assert
	assert.Equal(t, []string{"cmd-1", "cmd-2", "cmd-3"}, snapshot)
	assert.Equal(t, snapshot, restored.Snapshot())

	// The restored cache evicts in the original order.
	restored.Add("cmd-4")
	restored.Add("cmd-5")
	assert.False(t, restored.Contains("cmd-1"))
	assert.True(t, restored.Contains("cmd-5"))
}

// TestDedupCache_DefaultCapacity tests the fallback for a non-positive
// capacity.
func TestDedupCache_DefaultCapacity(t *testing.T) {
	cache := agent.NewDedupCache(0)

	for i := 0; i < 3; i++ {
		cache.Add(string(rune('a' + i)))
	}

	assert.Equal(t, 3, cache.Len())
}
