package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/satindergrewal/lofiboard/internal/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusBitrate is the encoder bitrate for WebRTC listeners.
const OpusBitrate = 96000

// WebRTCHandler answers SDP offers and streams the live mix to each peer as Opus.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	config      webrtc.Configuration

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]struct{}
}

// NewWebRTCHandler creates a WebRTC stream handler. ICE servers are optional.
func NewWebRTCHandler(b *Broadcaster, iceServers ...string) *WebRTCHandler {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return &WebRTCHandler{
		broadcaster: b,
		config:      cfg,
		peers:       make(map[*webrtc.PeerConnection]struct{}),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close hangs up every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := make([]*webrtc.PeerConnection, 0, len(h.peers))
	for pc := range h.peers {
		peers = append(peers, pc)
	}
	clear(h.peers)
	h.mu.Unlock()

	for _, pc := range peers {
		pc.Close()
	}
}

// negotiationError carries the HTTP status for a failed offer.
type negotiationError struct {
	code int
	msg  string
	err  error
}

func (e *negotiationError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *negotiationError) Unwrap() error { return e.err }

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		http.Error(w, "expected an SDP offer", http.StatusBadRequest)
		return
	}

	pc, track, err := h.answer(r.Context(), offer)
	if err != nil {
		var ne *negotiationError
		if errors.As(err, &ne) {
			log.Printf("WebRTC offer rejected: %v", err)
			http.Error(w, ne.msg, ne.code)
		}
		return
	}
	h.attach(pc, track)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// answer builds a peer connection with one Opus track for offer and waits for
// ICE gathering. On error the connection is closed.
func (h *WebRTCHandler) answer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(h.config)
	if err != nil {
		return nil, nil, &negotiationError{http.StatusInternalServerError, "create peer connection failed", err}
	}
	fail := func(code int, msg string, err error) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
		pc.Close()
		return nil, nil, &negotiationError{code, msg, err}
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audio.SampleRate, Channels: audio.Channels},
		"audio",
		"soundboard",
	)
	if err != nil {
		return fail(http.StatusInternalServerError, "create audio track failed", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail(http.StatusInternalServerError, "add track failed", err)
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(http.StatusBadRequest, "set remote description failed", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(http.StatusInternalServerError, "create answer failed", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(http.StatusInternalServerError, "set local description failed", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		pc.Close()
		return nil, nil, ctx.Err()
	}
	return pc, track, nil
}

// attach registers pc and starts feeding it the live mix until it disconnects.
func (h *WebRTCHandler) attach(pc *webrtc.PeerConnection, track *webrtc.TrackLocalStaticSample) {
	h.mu.Lock()
	h.peers[pc] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	log.Printf("WebRTC peer connected (total: %d)", n)

	listener := h.broadcaster.Subscribe()
	go h.streamToPeer(listener, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			h.broadcaster.Unsubscribe(listener)
			if h.removePeer(pc) {
				pc.Close()
				log.Printf("WebRTC peer disconnected (remaining: %d)", h.PeerCount())
			}
		}
	})
}

func (h *WebRTCHandler) streamToPeer(listener *Listener, track *webrtc.TrackLocalStaticSample) {
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Printf("WebRTC: opus encoder error: %v", err)
		return
	}
	if err := enc.SetBitrate(OpusBitrate); err != nil {
		log.Printf("WebRTC: set bitrate: %v", err)
	}

	opusBuf := make([]byte, 4000)
	for {
		select {
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, opusBuf)
			if err != nil {
				log.Printf("WebRTC: opus encode error: %v", err)
				continue
			}
			if err := track.WriteSample(media.Sample{
				Data:     opusBuf[:n],
				Duration: audio.FrameDuration,
			}); err != nil {
				return
			}
		}
	}
}

// removePeer reports whether pc was still registered.
func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[pc]; !ok {
		return false
	}
	delete(h.peers, pc)
	return true
}
