package agent

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/pkg/file"
)

// Ledger persists the processed-command ids behind the dedup cache so a
// restart does not re-run recently executed commands.
type Ledger struct {
	filePath string
	fileOps  file.FileOperations
	logger   zerolog.Logger
	mu       sync.Mutex
}

// ledgerState is the on-disk layout.
type ledgerState struct {
	ProcessedIDs []string  `json:"processed_ids"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewLedger initializes a ledger at the given path.
func NewLedger(filePath string, fileOps file.FileOperations, logger zerolog.Logger) *Ledger {
	return &Ledger{
		filePath: filePath,
		fileOps:  fileOps,
		logger:   logger,
	}
}

// Load reads the persisted ids, oldest first. A missing file is an empty
// ledger, not an error.
func (l *Ledger) Load() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exists, err := l.fileOps.IsFileExists(l.filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("path", l.filePath).Msg("Failed to stat ledger file")
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var state ledgerState
	if err := l.fileOps.ReadJsonFile(l.filePath, &state); err != nil {
		l.logger.Error().Err(err).Str("path", l.filePath).Msg("Failed to read ledger file")
		return nil, err
	}
	return state.ProcessedIDs, nil
}

// Save writes the ids through an atomic rename.
func (l *Ledger) Save(ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := ledgerState{
		ProcessedIDs: ids,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := l.fileOps.WriteJsonFile(l.filePath, state); err != nil {
		l.logger.Error().Err(err).Str("path", l.filePath).Msg("Failed to write ledger file")
		return err
	}
	return nil
}
