// Command mixdown renders a mix of catalog sounds to a WAV file.
//
// Usage:
//
//	mixdown -o night.wav rain=0.5 jazz=0.3
//	mixdown -spec preset.json -duration 10s -play
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/satindergrewal/lofiboard/internal/audio"
	"github.com/satindergrewal/lofiboard/internal/catalog"
	"github.com/satindergrewal/lofiboard/internal/config"
	"github.com/satindergrewal/lofiboard/internal/fetch"
	"github.com/satindergrewal/lofiboard/internal/render"
)

func main() {
	cfg := config.Load()

	specPath := flag.String("spec", "", "JSON mix file ({\"tracks\":[{\"track\":\"rain\",\"gain\":0.5}]}); otherwise track=gain arguments")
	outPath := flag.String("o", "mix.wav", "Output WAV file path")
	duration := flag.Duration("duration", cfg.RenderDuration, "Length of the render")
	rate := flag.Int("rate", cfg.RenderSampleRate, "Output sample rate in Hz")
	gain := flag.Float64("gain", cfg.DefaultGain, "Gain for tracks given without one")
	catalogPath := flag.String("catalog", cfg.CatalogFile, "JSON catalog file (default: built-in sounds)")
	play := flag.Bool("play", false, "Play the mix after writing it")
	list := flag.Bool("list", false, "List catalog sounds and exit")
	flag.Parse()

	cat := catalog.Default()
	if *catalogPath != "" {
		var err error
		if cat, err = catalog.Load(*catalogPath); err != nil {
			log.Fatalf("load catalog: %v", err)
		}
	}
	if *list {
		for _, t := range cat.Tracks() {
			fmt.Printf("%-10s %s %s  (%s)\n", t.ID, t.Emoji, t.Name, t.Locator)
		}
		return
	}

	spec, err := loadSpec(*specPath, flag.Args(), *gain)
	if err != nil {
		log.Fatalf("mix: %v", err)
	}

	fetcher, err := fetch.New(fetch.Options{
		AssetDir: cfg.AssetDir,
		BaseURL:  cfg.SoundBaseURL,
		Retries:  cfg.FetchRetries,
		Backoff:  500 * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("fetcher: %v", err)
	}
	renderer := render.NewRenderer(cat, fetcher, audio.DefaultRegistry(*rate, cfg.FFmpegPath), render.Options{
		Duration:     *duration,
		SampleRate:   *rate,
		TrackTimeout: cfg.TrackTimeout,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m, err := renderer.Render(ctx, spec)
	if err != nil {
		log.Fatalf("render: %v", err)
	}
	if err := m.WriteFile(*outPath); err != nil {
		log.Fatalf("write output: %v", err)
	}

	fmt.Printf("Rendered %v at %d Hz: %s\n", m.Duration(), m.SampleRate, *outPath)
	for _, id := range m.Tracks {
		fmt.Printf("  + %s\n", id)
	}
	for _, name := range m.Skipped {
		fmt.Printf("  - %s (not in catalog)\n", name)
	}

	if *play {
		if err := playMix(ctx, m); err != nil {
			log.Fatalf("play: %v", err)
		}
	}
}

func loadSpec(path string, args []string, defaultGain float64) (render.MixSpec, error) {
	if path == "" {
		return render.ParsePairs(args, defaultGain)
	}
	if len(args) > 0 {
		return render.MixSpec{}, fmt.Errorf("use either -spec or track=gain arguments, not both")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return render.MixSpec{}, fmt.Errorf("read spec: %w", err)
	}
	var spec render.MixSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return render.MixSpec{}, fmt.Errorf("parse spec %s: %w", path, err)
	}
	return spec, spec.Validate()
}

// playMix plays m on the default output device and waits until it ends.
func playMix(ctx context.Context, m *render.Mix) error {
	otoCtx, ready, err := oto.NewContext(m.SampleRate, m.Channels, oto.FormatSignedInt16LE)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(bytes.NewReader(audio.SamplesToBytes(m.Samples)))
	player.Play()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return player.Close()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return player.Close()
}
