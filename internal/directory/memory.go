package directory

import (
	"context"
	"sort"
	"sync"
)

// MemoryDirectory is an in-process TargetDirectory for tests and single-node
// deployments.
type MemoryDirectory struct {
	mu      sync.RWMutex
	targets map[string]TargetInfo
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{targets: make(map[string]TargetInfo)}
}

// Lookup returns the target or ErrTargetNotFound.
func (d *MemoryDirectory) Lookup(ctx context.Context, targetID string) (*TargetInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	info, ok := d.targets[targetID]
	if !ok {
		return nil, ErrTargetNotFound
	}
	clone := info
	return &clone, nil
}

// Register adds or replaces a target record.
func (d *MemoryDirectory) Register(ctx context.Context, info *TargetInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.targets[info.ID] = *info
	return nil
}

// List returns every registered target ordered by id.
func (d *MemoryDirectory) List(ctx context.Context) ([]*TargetInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*TargetInfo, 0, len(d.targets))
	for _, info := range d.targets {
		clone := info
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
