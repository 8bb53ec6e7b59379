// Package storage provides the persistence layer for the dining server.
// Only configuration is stored here; the table's history is never persisted.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPresetNotFound = errors.New("storage: preset not found")
	ErrBuiltinPreset  = errors.New("storage: built-in presets are read-only")
	ErrInvalidPreset  = errors.New("storage: invalid preset")
)

// Preset is a named set of table delays in milliseconds.
// It mirrors engine.Durations; the engine package should NOT import this.
type Preset struct {
	Name       string    `json:"name" db:"name"`
	PickUpMs   int64     `json:"pickup_ms" db:"pickup_ms"`
	PutDownMs  int64     `json:"putdown_ms" db:"putdown_ms"`
	EatingMs   int64     `json:"eating_ms" db:"eating_ms"`
	ThinkingMs int64     `json:"thinking_ms" db:"thinking_ms"`
	Builtin    bool      `json:"builtin" db:"builtin"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the preset can be stored.
func (p Preset) Validate() error {
	if p.Name == "" {
		return errors.Join(ErrInvalidPreset, errors.New("name is required"))
	}
	if p.PickUpMs <= 0 || p.PutDownMs <= 0 || p.EatingMs <= 0 || p.ThinkingMs <= 0 {
		return errors.Join(ErrInvalidPreset, errors.New("delays must be positive"))
	}
	return nil
}

// PresetRepository defines the interface for preset persistence.
// The server uses this interface; the implementation is in this package.
type PresetRepository interface {
	// Upsert inserts or replaces a preset by name.
	Upsert(ctx context.Context, preset Preset) error

	// Get retrieves a preset by name, or ErrPresetNotFound.
	Get(ctx context.Context, name string) (*Preset, error)

	// List returns every preset ordered by name.
	List(ctx context.Context) ([]Preset, error)

	// Delete removes a user preset. Built-in presets are protected.
	Delete(ctx context.Context, name string) error
}
