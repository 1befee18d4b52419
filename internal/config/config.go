package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Sound sources
	AssetDir     string // root that /sounds/... locators are read from
	SoundBaseURL string // when set, locators are downloaded relative to it
	CatalogFile  string // optional JSON catalog replacing the built-in one
	FFmpegPath   string // fallback decoder; empty disables it

	// Offline renders
	RenderDuration   time.Duration
	RenderSampleRate int
	TrackTimeout     time.Duration // fetch+decode of one track
	FetchRetries     int           // extra attempts after a failed fetch

	// Live board
	DefaultGain float64
	Fade        time.Duration // gain ramp on toggle/volume changes

	// Presets; empty RedisAddr keeps them in memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads an optional .env file and then configuration from environment
// variables with sane defaults. Variables already set win over the file.
func Load() Config {
	loadEnvFile(envStr("SOUNDBOARD_ENV_FILE", ".env"))

	return Config{
		Port: envInt("SOUNDBOARD_PORT", 8080),

		AssetDir:     envStr("SOUNDBOARD_ASSET_DIR", "./public"),
		SoundBaseURL: envStr("SOUNDBOARD_SOUNDS_BASE_URL", ""),
		CatalogFile:  envStr("SOUNDBOARD_CATALOG", ""),
		FFmpegPath:   envStr("SOUNDBOARD_FFMPEG", "ffmpeg"),

		RenderDuration:   time.Duration(envFloat("SOUNDBOARD_RENDER_SECONDS", 44) * float64(time.Second)),
		RenderSampleRate: envInt("SOUNDBOARD_RENDER_SAMPLE_RATE", 44100),
		TrackTimeout:     envDuration("SOUNDBOARD_TRACK_TIMEOUT", 30*time.Second),
		FetchRetries:     envInt("SOUNDBOARD_FETCH_RETRIES", 2),

		DefaultGain: envFloat("SOUNDBOARD_DEFAULT_GAIN", 0.5),
		Fade:        time.Duration(envInt("SOUNDBOARD_FADE_MS", 50)) * time.Millisecond,

		RedisAddr:     envStr("SOUNDBOARD_REDIS_ADDR", ""),
		RedisPassword: envStr("SOUNDBOARD_REDIS_PASSWORD", ""),
		RedisDB:       envInt("SOUNDBOARD_REDIS_DB", 0),
	}
}

func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Ignoring env file %s: %v", path, err)
		}
		return
	}
	log.Printf("Loaded env file %s", path)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDuration accepts Go durations ("45s") or plain seconds ("45").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if s, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(s * float64(time.Second))
	}
	return fallback
}
