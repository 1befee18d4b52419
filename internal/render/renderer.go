package render

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/satindergrewal/lofiboard/internal/audio"
	"github.com/satindergrewal/lofiboard/internal/catalog"
)

// Fetcher loads the encoded bytes behind a locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Decoder decodes encoded bytes fetched from locator.
type Decoder interface {
	Decode(ctx context.Context, locator string, data []byte) (*audio.Source, error)
}

// Options holds the fixed render parameters.
type Options struct {
	Duration     time.Duration
	SampleRate   int
	TrackTimeout time.Duration // bounds fetch+decode of one track; 0 disables
}

// DefaultOptions returns 44 seconds at 44.1kHz with a 30s per-track timeout.
func DefaultOptions() Options {
	return Options{
		Duration:     44 * time.Second,
		SampleRate:   44100,
		TrackTimeout: 30 * time.Second,
	}
}

// Frames returns the number of frames a render produces.
func (o Options) Frames() int {
	return audio.FramesFor(o.Duration, o.SampleRate)
}

// TrackError reports which track failed and at which step.
type TrackError struct {
	Track   string
	Locator string
	Op      string // "fetch" or "decode"
	Err     error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("%s track %s (%s): %v", e.Op, e.Track, e.Locator, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}

// Renderer mixes catalog tracks offline. It keeps no state between renders.
type Renderer struct {
	catalog *catalog.Catalog
	fetcher Fetcher
	decoder Decoder
	opts    Options
}

// NewRenderer creates a renderer over cat.
func NewRenderer(cat *catalog.Catalog, f Fetcher, d Decoder, opts Options) *Renderer {
	return &Renderer{catalog: cat, fetcher: f, decoder: d, opts: opts}
}

// Options returns the render parameters.
func (r *Renderer) Options() Options {
	return r.opts
}

// Catalog returns the catalog specs are resolved against.
func (r *Renderer) Catalog() *catalog.Catalog {
	return r.catalog
}

// Render resolves spec, loads every track and mixes them. The first fetch or
// decode failure aborts the render with a *TrackError; nothing partial is
// returned.
func (r *Renderer) Render(ctx context.Context, spec MixSpec) (*Mix, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if r.opts.SampleRate <= 0 || r.opts.Duration <= 0 {
		return nil, fmt.Errorf("invalid render options: %v at %d Hz", r.opts.Duration, r.opts.SampleRate)
	}

	id := uuid.NewString()
	start := time.Now()
	resolved, skipped := Resolve(spec, r.catalog)

	sources, err := r.acquire(ctx, resolved)
	if err != nil {
		log.Printf("Render %s aborted: %v", id, err)
		return nil, err
	}

	inputs := make([]Input, len(resolved))
	tracks := make([]string, len(resolved))
	for i, res := range resolved {
		inputs[i] = Input{Source: sources[i], Gain: res.Gain}
		tracks[i] = res.Track.ID
	}

	m := MixSources(inputs, r.opts.Frames(), r.opts.SampleRate)
	m.ID = id
	m.Tracks = tracks
	m.Skipped = skipped
	log.Printf("Render %s: %d tracks, %d frames at %d Hz in %v", id, len(tracks), m.Frames, m.SampleRate, time.Since(start).Round(time.Millisecond))
	return m, nil
}

// RenderWAV renders spec and returns the encoded WAV file.
func (r *Renderer) RenderWAV(ctx context.Context, spec MixSpec) ([]byte, error) {
	m, err := r.Render(ctx, spec)
	if err != nil {
		return nil, err
	}
	return m.WAV(), nil
}

// LoadTrack fetches and decodes one track at the render sample rate.
func (r *Renderer) LoadTrack(ctx context.Context, t catalog.Track) (*audio.Source, error) {
	if r.opts.TrackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.TrackTimeout)
		defer cancel()
	}

	data, err := r.fetcher.Fetch(ctx, t.Locator)
	if err != nil {
		return nil, &TrackError{Track: t.ID, Locator: t.Locator, Op: "fetch", Err: err}
	}
	src, err := r.decoder.Decode(ctx, t.Locator, data)
	if err == nil && src.SampleRate != r.opts.SampleRate {
		src, err = audio.Resample(src, r.opts.SampleRate)
	}
	if err != nil {
		return nil, &TrackError{Track: t.ID, Locator: t.Locator, Op: "decode", Err: err}
	}
	log.Printf("Loaded %s: %v, %d channels", t.ID, src.Duration().Round(time.Millisecond), src.NumChannels())
	return src, nil
}

// acquire loads all tracks concurrently. Sources come back in input order.
// The first failure cancels the remaining loads.
func (r *Renderer) acquire(ctx context.Context, tracks []Resolved) ([]*audio.Source, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sources := make([]*audio.Source, len(tracks))
	errCh := make(chan error, len(tracks))

	var wg sync.WaitGroup
	for i, t := range tracks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src, err := r.LoadTrack(ctx, t.Track)
			if err != nil {
				errCh <- err
				cancel()
				return
			}
			sources[i] = src
		}()
	}
	wg.Wait()
	close(errCh)

	// errCh is FIFO, so the first value is the failure that triggered the cancel.
	if err, ok := <-errCh; ok {
		return nil, err
	}
	return sources, nil
}
