package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldvision/fieldvision/internal/models"
)

// PostgresStore is the relational CommandStore binding. It expects a *sql.DB
// opened with the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a store over an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pendingCommandsSchema = `
CREATE TABLE IF NOT EXISTS pending_commands (
	id              TEXT PRIMARY KEY,
	target_id       TEXT NOT NULL,
	kind            TEXT NOT NULL,
	issued_at       TIMESTAMPTZ NOT NULL,
	published       BOOLEAN NOT NULL DEFAULT FALSE,
	published_at    TIMESTAMPTZ,
	acknowledged    BOOLEAN NOT NULL DEFAULT FALSE,
	acknowledged_at TIMESTAMPTZ,
	attempt_count   INTEGER NOT NULL DEFAULT 0,
	expires_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_pending_commands_target_active
	ON pending_commands (target_id, issued_at)
	WHERE NOT acknowledged;
`

// EnsureSchema creates the commands table and its indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("command store: nil db")
	}
	_, err := s.db.ExecContext(ctx, pendingCommandsSchema)
	return err
}

// Create inserts a command record.
func (s *PostgresStore) Create(ctx context.Context, cmd *models.PendingCommand) error {
	if s == nil || s.db == nil {
		return errors.New("command store: nil db")
	}
	if cmd == nil {
		return errors.New("command store: nil command")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO pending_commands (
	id, target_id, kind, issued_at, published, published_at,
	acknowledged, acknowledged_at, attempt_count, expires_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)`, cmd.ID, cmd.TargetID, cmd.Kind, cmd.IssuedAt, cmd.Published, cmd.PublishedAt,
		cmd.Acknowledged, cmd.AcknowledgedAt, cmd.AttemptCount, cmd.ExpiresAt)
	return err
}

// CreateAndSupersede expires every active command of supersedeKind on the
// same target and inserts cmd inside one transaction. An advisory lock on
// the target id serializes racing issuances for the same target.
func (s *PostgresStore) CreateAndSupersede(ctx context.Context, cmd *models.PendingCommand, supersedeKind models.CommandKind) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("command store: nil db")
	}
	if cmd == nil {
		return nil, errors.New("command store: nil command")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin supersede tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, cmd.TargetID); err != nil {
		return nil, fmt.Errorf("lock target %s: %w", cmd.TargetID, err)
	}

	rows, err := tx.QueryContext(ctx, `
UPDATE pending_commands
SET expires_at = $1
WHERE target_id = $2 AND kind = $3
	AND NOT acknowledged
	AND (expires_at IS NULL OR expires_at > $1)
RETURNING id`, cmd.IssuedAt, cmd.TargetID, supersedeKind)
	if err != nil {
		return nil, fmt.Errorf("supersede %s commands: %w", supersedeKind, err)
	}
	var superseded []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		superseded = append(superseded, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO pending_commands (
	id, target_id, kind, issued_at, published, published_at,
	acknowledged, acknowledged_at, attempt_count, expires_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)`, cmd.ID, cmd.TargetID, cmd.Kind, cmd.IssuedAt, cmd.Published, cmd.PublishedAt,
		cmd.Acknowledged, cmd.AcknowledgedAt, cmd.AttemptCount, cmd.ExpiresAt); err != nil {
		return nil, fmt.Errorf("insert command %s: %w", cmd.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit supersede tx: %w", err)
	}
	return superseded, nil
}

// GetByID fetches a command by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.PendingCommand, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("command store: nil db")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, target_id, kind, issued_at, published, published_at,
	acknowledged, acknowledged_at, attempt_count, expires_at
FROM pending_commands
WHERE id = $1
LIMIT 1`, id)
	return scanPendingCommand(row)
}

// FindActiveForTarget returns the target's unacknowledged, unexpired
// commands ordered by ascending issue time.
func (s *PostgresStore) FindActiveForTarget(ctx context.Context, targetID string) ([]*models.PendingCommand, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("command store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, target_id, kind, issued_at, published, published_at,
	acknowledged, acknowledged_at, attempt_count, expires_at
FROM pending_commands
WHERE target_id = $1
	AND NOT acknowledged
	AND (expires_at IS NULL OR expires_at > NOW())
ORDER BY issued_at ASC, id ASC`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.PendingCommand
	for rows.Next() {
		cmd, err := scanPendingCommand(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPublished records a successful delivery, keeping the first published
// timestamp across repeat deliveries.
func (s *PostgresStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("command store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE pending_commands
SET published = TRUE, published_at = COALESCE(published_at, $1)
WHERE id = $2`, at, id)
	return err
}

// MarkAcknowledged transitions the given commands to acknowledged, skipping
// expired, already acknowledged and foreign rows, and returns the count of
// rows that changed.
func (s *PostgresStore) MarkAcknowledged(ctx context.Context, targetID string, ids []string, at time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("command store: nil db")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `
UPDATE pending_commands
SET acknowledged = TRUE, acknowledged_at = $1,
	published = TRUE, published_at = COALESCE(published_at, $1)
WHERE id = ANY($2)
	AND ($3 = '' OR target_id = $3)
	AND NOT acknowledged
	AND (expires_at IS NULL OR expires_at > $1)`, at, ids, targetID)
	if err != nil {
		return 0, err
	}
	count, _ := result.RowsAffected()
	return int(count), nil
}

// MarkExpired truncates the command's lifetime to at, unless the command is
// acknowledged or already expired.
func (s *PostgresStore) MarkExpired(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("command store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE pending_commands
SET expires_at = $1
WHERE id = $2
	AND NOT acknowledged
	AND (expires_at IS NULL OR expires_at > $1)`, at, id)
	return err
}

// IncrementAttempt counts one delivery attempt against the command.
func (s *PostgresStore) IncrementAttempt(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("command store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE pending_commands
SET attempt_count = attempt_count + 1
WHERE id = $1`, id)
	return err
}

// FindStale returns live commands issued before the cutoff or whose attempt
// count reached maxAttempts. Rows already expired are excluded, otherwise
// every old record would resurface on each sweep forever.
func (s *PostgresStore) FindStale(ctx context.Context, issuedBefore time.Time, maxAttempts int) ([]*models.PendingCommand, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("command store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, target_id, kind, issued_at, published, published_at,
	acknowledged, acknowledged_at, attempt_count, expires_at
FROM pending_commands
WHERE NOT acknowledged
	AND (expires_at IS NULL OR expires_at > NOW())
	AND (issued_at < $1 OR attempt_count >= $2)
ORDER BY issued_at ASC, id ASC`, issuedBefore, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.PendingCommand
	for rows.Next() {
		cmd, err := scanPendingCommand(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingCommand(row rowScanner) (*models.PendingCommand, error) {
	var cmd models.PendingCommand
	var publishedAt sql.NullTime
	var acknowledgedAt sql.NullTime
	var expiresAt sql.NullTime
	if err := row.Scan(
		&cmd.ID,
		&cmd.TargetID,
		&cmd.Kind,
		&cmd.IssuedAt,
		&cmd.Published,
		&publishedAt,
		&cmd.Acknowledged,
		&acknowledgedAt,
		&cmd.AttemptCount,
		&expiresAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cmd.IssuedAt = cmd.IssuedAt.UTC()
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		cmd.PublishedAt = &t
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time.UTC()
		cmd.AcknowledgedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		cmd.ExpiresAt = &t
	}
	return &cmd, nil
}
