// Package preset stores named mixes.
package preset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/satindergrewal/lofiboard/internal/render"
)

var (
	ErrNotFound = errors.New("preset not found")
	ErrNoName   = errors.New("preset name is empty")
)

// Preset is a saved mix.
type Preset struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Spec      render.MixSpec `json:"spec"`
	CreatedAt time.Time      `json:"createdAt"`
}

// New creates a preset with a fresh id. The mix must be valid.
func New(name string, spec render.MixSpec) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Preset{}, ErrNoName
	}
	if err := spec.Validate(); err != nil {
		return Preset{}, fmt.Errorf("validate preset %q: %w", name, err)
	}
	return Preset{
		ID:        uuid.NewString(),
		Name:      name,
		Spec:      spec,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Filename returns a safe download name for the rendered preset.
func (p Preset) Filename() string {
	var b strings.Builder
	for _, r := range strings.ToLower(p.Name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "mix"
	}
	return name + ".wav"
}

// Store persists presets.
type Store interface {
	// List returns all presets, oldest first.
	List(ctx context.Context) ([]Preset, error)
	Get(ctx context.Context, id string) (Preset, error)
	Save(ctx context.Context, p Preset) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps presets in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{presets: make(map[string]Preset)}
}

func (s *MemoryStore) List(_ context.Context) ([]Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Preset, 0, len(s.presets))
	for _, p := range s.presets {
		out = append(out, p)
	}
	sortPresets(out)
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presets[id]
	if !ok {
		return Preset{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Save(_ context.Context, p Preset) error {
	if p.ID == "" {
		return errors.New("save preset: missing id")
	}
	s.mu.Lock()
	s.presets[p.ID] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.presets[id]; !ok {
		return ErrNotFound
	}
	delete(s.presets, id)
	return nil
}

func sortPresets(ps []Preset) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}
