package directory

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresDirectory is the relational TargetDirectory binding.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory constructs a directory over an open database handle.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

const targetsSchema = `
CREATE TABLE IF NOT EXISTS targets (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	registered_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the targets table if missing.
func (d *PostgresDirectory) EnsureSchema(ctx context.Context) error {
	if d == nil || d.db == nil {
		return errors.New("target directory: nil db")
	}
	_, err := d.db.ExecContext(ctx, targetsSchema)
	return err
}

// Lookup returns the target or ErrTargetNotFound.
func (d *PostgresDirectory) Lookup(ctx context.Context, targetID string) (*TargetInfo, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("target directory: nil db")
	}
	var info TargetInfo
	err := d.db.QueryRowContext(ctx, `
SELECT id, name, active, registered_at
FROM targets
WHERE id = $1
LIMIT 1`, targetID).Scan(&info.ID, &info.Name, &info.Active, &info.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	info.RegisteredAt = info.RegisteredAt.UTC()
	return &info, nil
}

// Register adds or replaces a target record.
func (d *PostgresDirectory) Register(ctx context.Context, info *TargetInfo) error {
	if d == nil || d.db == nil {
		return errors.New("target directory: nil db")
	}
	if info == nil {
		return errors.New("target directory: nil target")
	}
	_, err := d.db.ExecContext(ctx, `
INSERT INTO targets (id, name, active, registered_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, active = EXCLUDED.active`, info.ID, info.Name, info.Active, info.RegisteredAt)
	return err
}

// List returns every registered target ordered by id.
func (d *PostgresDirectory) List(ctx context.Context) ([]*TargetInfo, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("target directory: nil db")
	}
	rows, err := d.db.QueryContext(ctx, `
SELECT id, name, active, registered_at
FROM targets
ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*TargetInfo
	for rows.Next() {
		var info TargetInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Active, &info.RegisteredAt); err != nil {
			return nil, err
		}
		info.RegisteredAt = info.RegisteredAt.UTC()
		result = append(result, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
