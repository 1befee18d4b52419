// Package board holds the live soundboard session: which sounds are playing,
// at what volume, and the most recent offline render.
package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/satindergrewal/lofiboard/internal/audio"
	"github.com/satindergrewal/lofiboard/internal/catalog"
	"github.com/satindergrewal/lofiboard/internal/render"
)

var (
	ErrUnknownSound = errors.New("unknown sound")
	ErrNotPlaying   = errors.New("sound is not playing")
)

// Loader fetches and decodes one track at the live sample rate.
type Loader interface {
	LoadTrack(ctx context.Context, t catalog.Track) (*audio.Source, error)
}

// Renderer renders a mix offline.
type Renderer interface {
	Render(ctx context.Context, spec render.MixSpec) (*render.Mix, error)
}

// SoundState is one catalog entry with its live state.
type SoundState struct {
	catalog.Track
	Playing bool    `json:"playing"`
	Loading bool    `json:"loading"`
	Gain    float64 `json:"gain"`
}

// Board is the live session. Playing sounds are fed to the pipeline.
type Board struct {
	cat         *catalog.Catalog
	loader      Loader
	pipeline    *audio.Pipeline
	defaultGain float64

	mu      sync.RWMutex
	playing map[string]bool
	gains   map[string]float64 // last volume per sound, kept while stopped
	pending map[string]uint64  // sounds being loaded -> toggle token
	sources map[string]*audio.Source
	toggles uint64

	renderGen uint64 // latest issued render token
	latest    *render.Mix
	latestGen uint64 // token of latest
}

// New creates a board over cat. Sounds start at defaultGain.
func New(cat *catalog.Catalog, loader Loader, pipeline *audio.Pipeline, defaultGain float64) *Board {
	return &Board{
		cat:         cat,
		loader:      loader,
		pipeline:    pipeline,
		defaultGain: defaultGain,
		playing:     make(map[string]bool),
		gains:       make(map[string]float64),
		pending:     make(map[string]uint64),
		sources:     make(map[string]*audio.Source),
	}
}

func (b *Board) gainLocked(id string) float64 {
	if g, ok := b.gains[id]; ok {
		return g
	}
	return b.defaultGain
}

// Toggle starts the sound if it is stopped and stops it if it is playing.
// Toggling a sound that is still loading cancels the start. Returns whether
// the sound is playing afterwards.
func (b *Board) Toggle(ctx context.Context, id string) (bool, error) {
	t, ok := b.cat.Lookup(id)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownSound, id)
	}

	b.mu.Lock()
	if b.playing[t.ID] {
		delete(b.playing, t.ID)
		b.mu.Unlock()
		b.pipeline.Stop(t.ID)
		log.Printf("Stopped %s", t.ID)
		return false, nil
	}
	if _, loading := b.pending[t.ID]; loading {
		delete(b.pending, t.ID)
		b.mu.Unlock()
		log.Printf("Cancelled start of %s", t.ID)
		return false, nil
	}
	b.toggles++
	token := b.toggles
	src := b.sources[t.ID]
	b.pending[t.ID] = token
	b.mu.Unlock()

	if src == nil {
		var err error
		src, err = b.loader.LoadTrack(ctx, t)
		if err != nil {
			b.mu.Lock()
			if b.pending[t.ID] == token {
				delete(b.pending, t.ID)
			}
			b.mu.Unlock()
			return false, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[t.ID] = src
	if b.pending[t.ID] != token {
		// toggled off or restarted while loading
		return b.playing[t.ID], nil
	}
	delete(b.pending, t.ID)
	b.playing[t.ID] = true
	gain := b.gainLocked(t.ID)
	b.pipeline.Play(t.ID, src, gain)
	log.Printf("Playing %s at %.2f", t.ID, gain)
	return true, nil
}

// SetVolume changes the gain of a playing sound.
func (b *Board) SetVolume(id string, gain float64) error {
	t, ok := b.cat.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, id)
	}
	if math.IsNaN(gain) || gain < 0 || gain > 1 {
		return fmt.Errorf("%w: %v", render.ErrGain, gain)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.playing[t.ID] {
		return fmt.Errorf("%w: %s", ErrNotPlaying, t.ID)
	}
	b.gains[t.ID] = gain
	b.pipeline.SetGain(t.ID, gain)
	return nil
}

// StopAll stops every sound and cancels pending starts. Volumes are kept.
func (b *Board) StopAll() {
	b.mu.Lock()
	n := len(b.playing)
	clear(b.playing)
	clear(b.pending)
	b.mu.Unlock()

	b.pipeline.StopAll()
	log.Printf("Stopped all sounds (%d playing)", n)
}

// State returns every catalog sound with its live state, in catalog order.
func (b *Board) State() []SoundState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tracks := b.cat.Tracks()
	out := make([]SoundState, len(tracks))
	for i, t := range tracks {
		_, loading := b.pending[t.ID]
		out[i] = SoundState{
			Track:   t,
			Playing: b.playing[t.ID],
			Loading: loading,
			Gain:    b.gainLocked(t.ID),
		}
	}
	return out
}

// Snapshot returns the playing sounds as a mix, in catalog order.
func (b *Board) Snapshot() render.MixSpec {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var spec render.MixSpec
	for _, t := range b.cat.Tracks() {
		if b.playing[t.ID] {
			spec.Tracks = append(spec.Tracks, render.Entry{Track: t.ID, Gain: b.gainLocked(t.ID)})
		}
	}
	return spec
}

// BeginRender issues a new render token. Tokens increase monotonically.
func (b *Board) BeginRender() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.renderGen++
	return b.renderGen
}

// CommitRender stores m as the latest render unless a render started later
// has already been committed. Returns false when m was discarded as stale.
func (b *Board) CommitRender(gen uint64, m *render.Mix) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen <= b.latestGen {
		log.Printf("Discarding stale render %d (latest %d)", gen, b.latestGen)
		return false
	}
	b.latest = m
	b.latestGen = gen
	return true
}

// LatestRender returns the most recent committed render.
func (b *Board) LatestRender() (*render.Mix, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.latest != nil
}

// Render renders spec under a fresh token and commits the result. current
// is false when a render started later finished first; the mix is still
// returned to the caller. A failed render commits nothing, so it never
// displaces an older successful one.
func (b *Board) Render(ctx context.Context, r Renderer, spec render.MixSpec) (m *render.Mix, current bool, err error) {
	gen := b.BeginRender()
	m, err = r.Render(ctx, spec)
	if err != nil {
		return nil, false, err
	}
	return m, b.CommitRender(gen, m), nil
}
