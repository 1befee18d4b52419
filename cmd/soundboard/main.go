package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/satindergrewal/lofiboard/internal/api"
	"github.com/satindergrewal/lofiboard/internal/audio"
	"github.com/satindergrewal/lofiboard/internal/board"
	"github.com/satindergrewal/lofiboard/internal/catalog"
	"github.com/satindergrewal/lofiboard/internal/config"
	"github.com/satindergrewal/lofiboard/internal/fetch"
	"github.com/satindergrewal/lofiboard/internal/preset"
	"github.com/satindergrewal/lofiboard/internal/render"
	"github.com/satindergrewal/lofiboard/internal/stream"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("soundboard starting up...")

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		var err error
		if cat, err = catalog.Load(cfg.CatalogFile); err != nil {
			log.Fatalf("Catalog: %v", err)
		}
	}
	log.Printf("Catalog: %d sounds", cat.Len())

	fetcher, err := fetch.New(fetch.Options{
		AssetDir: cfg.AssetDir,
		BaseURL:  cfg.SoundBaseURL,
		Retries:  cfg.FetchRetries,
		Backoff:  500 * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("Fetcher: %v", err)
	}

	ffmpeg := cfg.FFmpegPath
	if ffmpeg != "" {
		if _, err := exec.LookPath(ffmpeg); err != nil {
			log.Printf("ffmpeg not found (%v), only WAV and MP3 sounds can be decoded", err)
			ffmpeg = ""
		}
	}

	// Offline renders at the configured rate
	renderOpts := render.Options{
		Duration:     cfg.RenderDuration,
		SampleRate:   cfg.RenderSampleRate,
		TrackTimeout: cfg.TrackTimeout,
	}
	renderer := render.NewRenderer(cat, fetcher, audio.DefaultRegistry(cfg.RenderSampleRate, ffmpeg), renderOpts)

	// Live sounds are decoded at the pipeline rate
	liveLoader := render.NewRenderer(cat, fetcher, audio.DefaultRegistry(audio.SampleRate, ffmpeg), render.Options{
		SampleRate:   audio.SampleRate,
		TrackTimeout: cfg.TrackTimeout,
	})

	var presets preset.Store = preset.NewMemoryStore()
	if cfg.RedisAddr != "" {
		dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := preset.DialRedis(dialCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		dialCancel()
		if err != nil {
			log.Fatalf("Redis not available: %v", err)
		}
		defer rdb.Close()
		presets = preset.NewRedisStore(rdb, "")
		log.Printf("Presets stored in Redis at %s", cfg.RedisAddr)
	} else {
		log.Println("Presets kept in memory (set SOUNDBOARD_REDIS_ADDR to persist)")
	}

	// Live pipeline
	pipeline := audio.NewPipeline(cfg.Fade)
	go pipeline.Run(ctx)

	// Broadcaster: fan-out PCM frames to all listeners
	broadcaster := stream.NewBroadcaster(0)
	go broadcaster.Run(ctx, pipeline.Frames())

	webrtcHandler := stream.NewWebRTCHandler(broadcaster)
	defer webrtcHandler.Close()

	sb := board.New(cat, liveLoader, pipeline, cfg.DefaultGain)

	handler := api.NewServer(api.Deps{
		Board:         sb,
		Renderer:      renderer,
		RenderOptions: renderOpts,
		Presets:       presets,
		Stream:        stream.NewHTTPHandler(broadcaster),
		Offer:         webrtcHandler,
		Assets:        http.FileServer(http.Dir(cfg.AssetDir)),
		Listeners: func() (int, int) {
			return broadcaster.ListenerCount() - webrtcHandler.PeerCount(), webrtcHandler.PeerCount()
		},
		Position: pipeline.Position,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("soundboard live on %s (renders: %v at %d Hz)", addr, cfg.RenderDuration, cfg.RenderSampleRate)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
