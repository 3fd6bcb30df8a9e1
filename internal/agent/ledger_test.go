package agent_test

import (
	"path/filepath"
	"testing"

	"github.com/fieldvision/fieldvision/internal/agent"
	"github.com/fieldvision/fieldvision/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedger_LoadMissingFile tests that a never-written ledger reads as
// empty instead of erroring.
func TestLedger_LoadMissingFile(t *testing.T) {
	ledger := agent.NewLedger(filepath.Join(t.TempDir(), "processed.json"), file.NewFileService(), zerolog.Nop())

	ids, err := ledger.Load()

	require.NoError(t, err)
	assert.Empty(t, ids)
}

// TestLedger_SaveAndLoad tests the persistence round trip.
func TestLedger_SaveAndLoad(t *testing.T) {
	// Setup
	path := filepath.Join(t.TempDir(), "processed.json")
	ledger := agent.NewLedger(path, file.NewFileService(), zerolog.Nop())

	// Execute
	require.NoError(t, ledger.Save([]string{"cmd-1", "cmd-2"}))
	ids, err := ledger.Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd-1", "cmd-2"}, ids)
}

// TestLedger_SaveOverwrites tests that the newest snapshot wins.
func TestLedger_SaveOverwrites(t *testing.T) {
	// Setup
	path := filepath.Join(t.TempDir(), "processed.json")
	ledger := agent.NewLedger(path, file.NewFileService(), zerolog.Nop())
	require.NoError(t, ledger.Save([]string{"cmd-1"}))

	// Execute
	require.NoError(t, ledger.Save([]string{"cmd-2", "cmd-3"}))

	// Assert
	ids, err := ledger.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd-2", "cmd-3"}, ids)
}

// TestLedger_CorruptFile tests that unreadable state surfaces as an error
// for the caller to decide on.
func TestLedger_CorruptFile(t *testing.T) {
	// Setup
	path := filepath.Join(t.TempDir(), "processed.json")
	fileOps := file.NewFileService()
	require.NoError(t, fileOps.WriteFileRaw(path, []byte("{broken")))

	ledger := agent.NewLedger(path, fileOps, zerolog.Nop())

	// Execute
	_, err := ledger.Load()

	// Assert
	assert.Error(t, err)
}
