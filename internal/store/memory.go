package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fieldvision/fieldvision/internal/models"
)

// MemoryStore is an in-process CommandStore for tests and single-node
// deployments. One mutex covers every operation, which trivially satisfies
// the per-target serialization the supersede step needs.
type MemoryStore struct {
	mu       sync.Mutex
	commands map[string]*models.PendingCommand
	seq      map[string]int // insertion order, breaks IssuedAt ties
	nextSeq  int
}

// NewMemoryStore creates an empty in-memory command store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		commands: make(map[string]*models.PendingCommand),
		seq:      make(map[string]int),
	}
}

// Create persists a new command record.
func (m *MemoryStore) Create(ctx context.Context, cmd *models.PendingCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.commands[cmd.ID]; ok {
		return fmt.Errorf("command %s already exists", cmd.ID)
	}
	m.insert(cmd)
	return nil
}

// CreateAndSupersede persists cmd and force expires every active command of
// supersedeKind on the same target in one locked step.
func (m *MemoryStore) CreateAndSupersede(ctx context.Context, cmd *models.PendingCommand, supersedeKind models.CommandKind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.commands[cmd.ID]; ok {
		return nil, fmt.Errorf("command %s already exists", cmd.ID)
	}

	now := cmd.IssuedAt
	var superseded []string
	for _, existing := range m.commands {
		if existing.TargetID != cmd.TargetID || existing.Kind != supersedeKind {
			continue
		}
		if existing.Acknowledged || existing.IsExpired(now) {
			continue
		}
		expiry := now
		existing.ExpiresAt = &expiry
		superseded = append(superseded, existing.ID)
	}
	sort.Strings(superseded)

	m.insert(cmd)
	return superseded, nil
}

// GetByID fetches one command or ErrNotFound.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*models.PendingCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd, ok := m.commands[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCommand(cmd), nil
}

// FindActiveForTarget returns the target's unacknowledged, unexpired
// commands ordered by ascending issue time.
func (m *MemoryStore) FindActiveForTarget(ctx context.Context, targetID string) ([]*models.PendingCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var active []*models.PendingCommand
	for _, cmd := range m.commands {
		if cmd.TargetID == targetID && cmd.IsActive(now) {
			active = append(active, copyCommand(cmd))
		}
	}
	m.sortByIssue(active)
	return active, nil
}

// MarkPublished records a successful delivery, keeping the first published
// timestamp across repeat deliveries.
func (m *MemoryStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd, ok := m.commands[id]
	if !ok {
		return ErrNotFound
	}
	if !cmd.Published {
		cmd.Published = true
		stamp := at
		cmd.PublishedAt = &stamp
	}
	return nil
}

// MarkAcknowledged transitions the given commands to acknowledged and
// returns how many actually changed.
func (m *MemoryStore) MarkAcknowledged(ctx context.Context, targetID string, ids []string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for _, id := range ids {
		cmd, ok := m.commands[id]
		if !ok {
			continue
		}
		if targetID != "" && cmd.TargetID != targetID {
			continue
		}
		if cmd.Acknowledged || cmd.IsExpired(at) {
			continue
		}
		stamp := at
		cmd.Acknowledged = true
		cmd.AcknowledgedAt = &stamp
		if !cmd.Published {
			// A pull-served command is a delivery too; keep the invariant
			// that acknowledged commands were published.
			cmd.Published = true
			cmd.PublishedAt = &stamp
		}
		updated++
	}
	return updated, nil
}

// MarkExpired truncates the command's lifetime to at.
func (m *MemoryStore) MarkExpired(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd, ok := m.commands[id]
	if !ok {
		return ErrNotFound
	}
	if cmd.Acknowledged || cmd.IsExpired(at) {
		return nil
	}
	stamp := at
	cmd.ExpiresAt = &stamp
	return nil
}

// IncrementAttempt counts one delivery attempt against the command.
func (m *MemoryStore) IncrementAttempt(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd, ok := m.commands[id]
	if !ok {
		return ErrNotFound
	}
	cmd.AttemptCount++
	return nil
}

// FindStale returns live commands issued before the cutoff or whose attempt
// count reached maxAttempts. Already expired commands stay out so sweep
// passes do not resurface them forever.
func (m *MemoryStore) FindStale(ctx context.Context, issuedBefore time.Time, maxAttempts int) ([]*models.PendingCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var stale []*models.PendingCommand
	for _, cmd := range m.commands {
		if cmd.Acknowledged || cmd.IsExpired(now) {
			continue
		}
		if cmd.IssuedAt.Before(issuedBefore) || cmd.HasExceededMaxAttempts(maxAttempts) {
			stale = append(stale, copyCommand(cmd))
		}
	}
	m.sortByIssue(stale)
	return stale, nil
}

// insert stores a copy under the caller-held lock.
func (m *MemoryStore) insert(cmd *models.PendingCommand) {
	m.commands[cmd.ID] = copyCommand(cmd)
	m.seq[cmd.ID] = m.nextSeq
	m.nextSeq++
}

// sortByIssue orders commands by issue time, falling back to insertion
// order for identical timestamps.
func (m *MemoryStore) sortByIssue(cmds []*models.PendingCommand) {
	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].IssuedAt.Equal(cmds[j].IssuedAt) {
			return m.seq[cmds[i].ID] < m.seq[cmds[j].ID]
		}
		return cmds[i].IssuedAt.Before(cmds[j].IssuedAt)
	})
}

// copyCommand clones a record so callers never alias store-owned memory.
func copyCommand(cmd *models.PendingCommand) *models.PendingCommand {
	clone := *cmd
	if cmd.PublishedAt != nil {
		t := *cmd.PublishedAt
		clone.PublishedAt = &t
	}
	if cmd.AcknowledgedAt != nil {
		t := *cmd.AcknowledgedAt
		clone.AcknowledgedAt = &t
	}
	if cmd.ExpiresAt != nil {
		t := *cmd.ExpiresAt
		clone.ExpiresAt = &t
	}
	return &clone
}
