package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLitePresetRepository implements PresetRepository for SQLite.
type SQLitePresetRepository struct {
	db *sql.DB
}

func NewSQLitePresetRepository(db *sql.DB) *SQLitePresetRepository {
	return &SQLitePresetRepository{db: db}
}

const presetColumns = `name, pickup_ms, putdown_ms, eating_ms, thinking_ms, builtin, updated_at`

func (r *SQLitePresetRepository) Upsert(ctx context.Context, preset Preset) error {
	if err := preset.Validate(); err != nil {
		return err
	}
	if preset.UpdatedAt.IsZero() {
		preset.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO presets (` + presetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			pickup_ms=excluded.pickup_ms,
			putdown_ms=excluded.putdown_ms,
			eating_ms=excluded.eating_ms,
			thinking_ms=excluded.thinking_ms,
			builtin=presets.builtin OR excluded.builtin,
			updated_at=excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		preset.Name, preset.PickUpMs, preset.PutDownMs, preset.EatingMs, preset.ThinkingMs,
		preset.Builtin, preset.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preset %q: %w", preset.Name, err)
	}
	return nil
}

func scanPreset(row interface{ Scan(...any) error }) (Preset, error) {
	var p Preset
	var updated int64
	if err := row.Scan(&p.Name, &p.PickUpMs, &p.PutDownMs, &p.EatingMs, &p.ThinkingMs, &p.Builtin, &updated); err != nil {
		return Preset{}, err
	}
	p.UpdatedAt = time.UnixMilli(updated)
	return p, nil
}

func (r *SQLitePresetRepository) Get(ctx context.Context, name string) (*Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets WHERE name = ?`
	p, err := scanPreset(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
		}
		return nil, fmt.Errorf("failed to get preset %q: %w", name, err)
	}
	return &p, nil
}

func (r *SQLitePresetRepository) List(ctx context.Context) ([]Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	var presets []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

func (r *SQLitePresetRepository) Delete(ctx context.Context, name string) error {
	p, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	if p.Builtin {
		return fmt.Errorf("%w: %q", ErrBuiltinPreset, name)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete preset %q: %w", name, err)
	}
	return nil
}

// SeedBuiltins stores the given presets flagged as built-in, overwriting
// their delays so a changed default takes effect on restart.
func (r *SQLitePresetRepository) SeedBuiltins(ctx context.Context, presets []Preset) error {
	for _, p := range presets {
		p.Builtin = true
		if err := r.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
