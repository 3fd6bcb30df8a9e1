package presence

import (
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/models"
)

// TransitionHook runs after a target's status changes. Hooks must not block;
// anything slow belongs on a worker pool.
type TransitionHook func(targetID string, from, to models.PresenceStatus)

// Tracker holds the authoritative presence state for every known target.
// It knows nothing about commands; interested parties subscribe to status
// transitions instead.
type Tracker struct {
	records cmap.ConcurrentMap[string, models.PresenceRecord]
	logger  zerolog.Logger

	mu    sync.RWMutex
	hooks []TransitionHook
}

// NewTracker creates an empty presence tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		records: cmap.New[models.PresenceRecord](),
		logger:  logger,
	}
}

// OnTransition registers a hook fired on every status change.
func (t *Tracker) OnTransition(hook TransitionHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

// Get returns the target's presence record. The second return is false when
// nothing was ever heard from the target.
func (t *Tracker) Get(targetID string) (models.PresenceRecord, bool) {
	return t.records.Get(targetID)
}

// IsOnline reports whether the target currently holds a live session.
// Unknown targets read as offline, which routes their traffic through the
// durable channel.
func (t *Tracker) IsOnline(targetID string) bool {
	rec, ok := t.records.Get(targetID)
	return ok && rec.Status == models.PresenceOnline
}

// Set records the target's status as of the given instant and fires
// transition hooks when the status actually changed.
func (t *Tracker) Set(targetID string, status models.PresenceStatus, at time.Time) {
	var from models.PresenceStatus
	var known bool

	t.records.Upsert(targetID, models.PresenceRecord{}, func(exists bool, current, _ models.PresenceRecord) models.PresenceRecord {
		known = exists
		if !exists {
			return models.PresenceRecord{
				TargetID:   targetID,
				Status:     status,
				LastSeenAt: at,
				UpdatedAt:  at,
			}
		}
		from = current.Status
		current.Status = status
		current.UpdatedAt = at
		if status == models.PresenceOnline {
			current.LastSeenAt = at
		}
		return current
	})

	if !known {
		from = models.PresenceOffline
	}
	if from == status {
		return
	}

	t.logger.Debug().
		Str("target_id", targetID).
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("Presence transition")
	t.fireHooks(targetID, from, status)
}

// Annotate attaches the latest heartbeat details to the target's record
// without touching its status.
func (t *Tracker) Annotate(targetID, agentVersion string, health *models.HealthSnapshot) {
	t.records.Upsert(targetID, models.PresenceRecord{}, func(exists bool, current, _ models.PresenceRecord) models.PresenceRecord {
		if !exists {
			current = models.PresenceRecord{TargetID: targetID, Status: models.PresenceOffline}
		}
		if agentVersion != "" {
			current.AgentVersion = agentVersion
		}
		if health != nil {
			current.Health = health
		}
		return current
	})
}

// RecordFix stores the target's latest location report.
func (t *Tracker) RecordFix(fix models.LocationFix) {
	t.records.Upsert(fix.TargetID, models.PresenceRecord{}, func(exists bool, current, _ models.PresenceRecord) models.PresenceRecord {
		if !exists {
			current = models.PresenceRecord{TargetID: fix.TargetID, Status: models.PresenceOffline}
		}
		f := fix
		current.LastFix = &f
		return current
	})
}

// MarkStale flips online targets not seen since the cutoff to offline and
// returns their ids. It covers heartbeats that stopped without the broker
// delivering a will. The staleness check is re-run under the record lock so
// a heartbeat racing the sweep wins.
func (t *Tracker) MarkStale(cutoff time.Time, at time.Time) []string {
	var flipped []string
	for item := range t.records.IterBuffered() {
		rec := item.Val
		if rec.Status != models.PresenceOnline || !rec.LastSeenAt.Before(cutoff) {
			continue
		}

		changed := false
		t.records.Upsert(item.Key, models.PresenceRecord{}, func(exists bool, current, _ models.PresenceRecord) models.PresenceRecord {
			if !exists {
				return models.PresenceRecord{TargetID: item.Key, Status: models.PresenceOffline, UpdatedAt: at}
			}
			if current.Status != models.PresenceOnline || !current.LastSeenAt.Before(cutoff) {
				return current
			}
			current.Status = models.PresenceOffline
			current.UpdatedAt = at
			changed = true
			return current
		})

		if changed {
			t.logger.Info().Str("target_id", item.Key).Msg("Target went silent, marking offline")
			flipped = append(flipped, item.Key)
			t.fireHooks(item.Key, models.PresenceOnline, models.PresenceOffline)
		}
	}
	return flipped
}

// Snapshot returns a copy of every presence record, for operator listings.
func (t *Tracker) Snapshot() []models.PresenceRecord {
	var records []models.PresenceRecord
	for item := range t.records.IterBuffered() {
		records = append(records, item.Val)
	}
	return records
}

func (t *Tracker) fireHooks(targetID string, from, to models.PresenceStatus) {
	t.mu.RLock()
	hooks := make([]TransitionHook, len(t.hooks))
	copy(hooks, t.hooks)
	t.mu.RUnlock()

	for _, hook := range hooks {
		hook(targetID, from, to)
	}
}
