package network

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/events"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/infra/storage"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
)

var errNoPresets = errors.New("preset store not configured")

// PresetService applies and stores named paces. It translates between the
// engine's Durations and the storage layer's Preset.
type PresetService struct {
	repo   storage.PresetRepository
	timing *engine.Timing
	sink   events.Sink
	logger *logger.Logger
}

// NewPresetService wires a preset store to the live timing cells.
// sink may be nil.
func NewPresetService(repo storage.PresetRepository, timing *engine.Timing, sink events.Sink, log *logger.Logger) *PresetService {
	if log == nil {
		log = logger.Nop()
	}
	return &PresetService{repo: repo, timing: timing, sink: sink, logger: log}
}

// ToPreset converts engine delays into a storable preset.
func ToPreset(name string, d engine.Durations) storage.Preset {
	return storage.Preset{
		Name:       name,
		PickUpMs:   d.PickUpMs,
		PutDownMs:  d.PutDownMs,
		EatingMs:   d.EatingMs,
		ThinkingMs: d.ThinkingMs,
	}
}

// ToDurations converts a stored preset into engine delays.
func ToDurations(p storage.Preset) engine.Durations {
	return engine.Durations{
		PickUpMs:   p.PickUpMs,
		PutDownMs:  p.PutDownMs,
		EatingMs:   p.EatingMs,
		ThinkingMs: p.ThinkingMs,
	}
}

// BuiltinPresets returns fast, medium and slow as storable presets, ordered by name.
func BuiltinPresets() []storage.Preset {
	builtins := engine.BuiltinPresets()
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	presets := make([]storage.Preset, 0, len(names))
	for _, name := range names {
		p := ToPreset(name, builtins[name])
		p.Builtin = true
		presets = append(presets, p)
	}
	return presets
}

// Apply loads the named preset and switches the table to it.
func (s *PresetService) Apply(ctx context.Context, name string) (engine.Durations, error) {
	p, err := s.repo.Get(ctx, name)
	if err != nil {
		return engine.Durations{}, err
	}
	d := ToDurations(*p)
	if err := s.timing.Apply(d); err != nil {
		return engine.Durations{}, err
	}
	s.logger.Event("PRESET_APPLIED", "config", name+" ("+d.String()+")")
	if s.sink != nil {
		s.sink.Append(events.TableEvent{
			Type:    events.EventTypePresetApplied,
			ActorID: events.SystemActor,
			Payload: map[string]interface{}{"name": name, "timing": d},
		})
	}
	return d, nil
}

// Save stores d under name. With d zero-valued the current timing is saved.
// Built-in presets cannot be overwritten.
func (s *PresetService) Save(ctx context.Context, name string, d engine.Durations) (storage.Preset, error) {
	if d == (engine.Durations{}) {
		d = s.timing.Load()
	}
	if err := d.Validate(); err != nil {
		return storage.Preset{}, err
	}
	if existing, err := s.repo.Get(ctx, name); err == nil && existing.Builtin {
		return storage.Preset{}, fmt.Errorf("%w: %q", storage.ErrBuiltinPreset, name)
	}
	p := ToPreset(name, d)
	if err := s.repo.Upsert(ctx, p); err != nil {
		return storage.Preset{}, err
	}
	s.logger.Event("PRESET_SAVED", "config", name+" ("+d.String()+")")
	return p, nil
}

// List returns every stored preset.
func (s *PresetService) List(ctx context.Context) ([]storage.Preset, error) {
	return s.repo.List(ctx)
}

// Delete removes a user preset.
func (s *PresetService) Delete(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, name)
}
