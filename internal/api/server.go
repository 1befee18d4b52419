// Package api exposes the soundboard over HTTP: live board controls, presets
// and offline renders returned as WAV files.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/satindergrewal/lofiboard/internal/board"
	"github.com/satindergrewal/lofiboard/internal/preset"
	"github.com/satindergrewal/lofiboard/internal/render"
)

// maxBody caps JSON request bodies.
const maxBody = 1 << 20

// Deps are the components the API drives. Stream, Offer, Listeners and
// Position are optional.
type Deps struct {
	Board         *board.Board
	Renderer      board.Renderer
	RenderOptions render.Options
	Presets       preset.Store

	Stream    http.Handler // live chunked WAV
	Offer     http.Handler // WebRTC SDP negotiation
	Assets    http.Handler // static sound files
	Listeners func() (httpCount, webrtcCount int)
	Position  func() time.Duration
}

// Server routes API requests.
type Server struct {
	d   Deps
	mux *http.ServeMux
}

// NewServer creates the API and registers its routes.
func NewServer(d Deps) *Server {
	s := &Server{d: d, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /api/sounds", s.handleSounds)
	s.mux.HandleFunc("POST /api/sounds/{id}/toggle", s.handleToggle)
	s.mux.HandleFunc("POST /api/sounds/{id}/volume", s.handleVolume)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	s.mux.HandleFunc("POST /api/render", s.handleRender)
	s.mux.HandleFunc("GET /api/render/latest", s.handleLatest)

	s.mux.HandleFunc("GET /api/presets", s.handleListPresets)
	s.mux.HandleFunc("POST /api/presets", s.handleCreatePreset)
	s.mux.HandleFunc("GET /api/presets/{id}", s.handleGetPreset)
	s.mux.HandleFunc("DELETE /api/presets/{id}", s.handleDeletePreset)
	s.mux.HandleFunc("POST /api/presets/{id}/render", s.handleRenderPreset)
	s.mux.HandleFunc("GET /api/presets/{id}/download", s.handleDownloadPreset)

	if d.Stream != nil {
		s.mux.Handle("GET /stream", d.Stream)
	}
	if d.Offer != nil {
		s.mux.Handle("/offer", d.Offer)
	}
	if d.Assets != nil {
		s.mux.Handle("GET /sounds/", d.Assets)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Write response: %v", err)
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var te *render.TrackError
	switch {
	case errors.As(err, &te):
		code = http.StatusBadGateway
	case errors.Is(err, board.ErrUnknownSound), errors.Is(err, preset.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, board.ErrNotPlaying):
		code = http.StatusConflict
	case errors.Is(err, render.ErrGain),
		errors.Is(err, render.ErrDuplicateTrack),
		errors.Is(err, render.ErrEmptyTrack),
		errors.Is(err, preset.ErrNoName):
		code = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code >= 500 {
		log.Printf("Request failed: %v", err)
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
}
