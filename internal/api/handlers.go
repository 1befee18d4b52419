package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/satindergrewal/lofiboard/internal/audio"
	"github.com/satindergrewal/lofiboard/internal/preset"
	"github.com/satindergrewal/lofiboard/internal/render"
)

func (s *Server) handleSounds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Board.State())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	playing, err := s.d.Board.Toggle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "playing": playing})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gain *float64 `json:"gain"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Gain == nil {
		badRequest(w, "body must be {\"gain\": 0..1}")
		return
	}
	id := r.PathValue("id")
	if err := s.d.Board.SetVolume(id, *req.Gain); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "gain": *req.Gain})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.d.Board.StopAll()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"playing": s.d.Board.Snapshot().Tracks,
		"render": map[string]any{
			"duration":    s.d.RenderOptions.Duration.Seconds(),
			"sample_rate": s.d.RenderOptions.SampleRate,
		},
	}
	if s.d.Listeners != nil {
		httpCount, webrtcCount := s.d.Listeners()
		status["http_listeners"] = httpCount
		status["webrtc_listeners"] = webrtcCount
	}
	if s.d.Position != nil {
		status["position"] = s.d.Position().Seconds()
	}
	if m, ok := s.d.Board.LatestRender(); ok {
		status["latest_render"] = mixInfo(m)
	}
	writeJSON(w, http.StatusOK, status)
}

func mixInfo(m *render.Mix) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"frames":      m.Frames,
		"sample_rate": m.SampleRate,
		"duration":    m.Duration().Seconds(),
		"bytes":       audio.WAVHeaderSize + m.DataLength(),
		"tracks":      m.Tracks,
		"skipped":     m.Skipped,
	}
}

// serveWAV writes m as a WAV file. attachment names a download; empty plays inline.
func serveWAV(w http.ResponseWriter, r *http.Request, m *render.Mix, attachment string) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Render-ID", m.ID)
	if len(m.Skipped) > 0 {
		w.Header().Set("X-Skipped-Tracks", strings.Join(m.Skipped, ","))
	}
	if attachment != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, attachment))
	}
	http.ServeContent(w, r, attachment, time.Time{}, bytes.NewReader(m.WAV()))
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var spec render.MixSpec
	if err := decodeBody(w, r, &spec); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid mix: "+err.Error())
		return
	}
	m, err := s.d.Renderer.Render(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	serveWAV(w, r, m, "mix.wav")
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	m, ok := s.d.Board.LatestRender()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "nothing rendered yet"})
		return
	}
	serveWAV(w, r, m, "")
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	list, err := s.d.Presets.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreatePreset saves the explicit tracks, or the live board when none
// are given.
func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string         `json:"name"`
		Tracks []render.Entry `json:"tracks"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid preset: "+err.Error())
		return
	}
	spec := render.MixSpec{Tracks: req.Tracks}
	if req.Tracks == nil {
		spec = s.d.Board.Snapshot()
	}
	p, err := preset.New(req.Name, spec)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.d.Presets.Save(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.d.Presets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Presets.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRenderPreset renders under a fresh board token so that only the
// newest request becomes the latest render.
func (s *Server) handleRenderPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.d.Presets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	m, current, err := s.d.Board.Render(r.Context(), s.d.Renderer, p.Spec)
	if err != nil {
		writeError(w, err)
		return
	}
	info := mixInfo(m)
	info["preset"] = p.ID
	info["current"] = current
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDownloadPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.d.Presets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := s.d.Renderer.Render(r.Context(), p.Spec)
	if err != nil {
		writeError(w, err)
		return
	}
	serveWAV(w, r, m, p.Filename())
}
