package health_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvision/fieldvision/internal/health"
)

// TestCollector_Snapshot tests that a snapshot always comes back usable,
// whatever the host probes report.
func TestCollector_Snapshot(t *testing.T) {
	// Setup
	collector := health.NewCollector(zerolog.Nop())

	// Execute
	snapshot := collector.Snapshot()

	// Assert
	require.NotNil(t, snapshot)
	assert.GreaterOrEqual(t, snapshot.CPUPercent, 0.0)
	assert.LessOrEqual(t, snapshot.CPUPercent, 100.0)
	assert.GreaterOrEqual(t, snapshot.MemoryPercent, 0.0)
	assert.LessOrEqual(t, snapshot.MemoryPercent, 100.0)
	assert.GreaterOrEqual(t, snapshot.DiskPercent, 0.0)
	assert.LessOrEqual(t, snapshot.DiskPercent, 100.0)
}
