package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"layeh.com/gopus"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/audio"
)

const (
	opusBitrate      = 128000
	maxOpusDataBytes = 4000
)

// WebRTCHandler negotiates WebRTC sessions that carry the live output as
// Opus.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	logger      *slog.Logger

	mu    sync.Mutex
	peers []*webrtc.PeerConnection
}

// NewWebRTCHandler creates a WebRTC stream handler.
func NewWebRTCHandler(b *Broadcaster, logger *slog.Logger) *WebRTCHandler {
	return &WebRTCHandler{
		broadcaster: b,
		logger:      logger,
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close tears down every peer connection.
func (h *WebRTCHandler) Close() error {
	h.mu.Lock()
	peers := h.peers
	h.peers = nil
	h.mu.Unlock()

	for _, pc := range peers {
		pc.Close()
	}
	return nil
}

// ServeHTTP accepts a JSON SDP offer and answers once ICE gathering is done.
func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil || offer.SDP == "" {
		writeError(w, http.StatusBadRequest, "invalid SDP offer")
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		h.logger.Error("create peer connection", "error", err)
		writeError(w, http.StatusInternalServerError, "create peer connection failed")
		return
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audio.OpusSampleRate, Channels: audio.OpusChannels},
		"audio",
		"detectx-player",
	)
	if err != nil {
		pc.Close()
		writeError(w, http.StatusInternalServerError, "create audio track failed")
		return
	}

	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		writeError(w, http.StatusInternalServerError, "add track failed")
		return
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		writeError(w, http.StatusBadRequest, "set remote description failed")
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		writeError(w, http.StatusInternalServerError, "create answer failed")
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		writeError(w, http.StatusInternalServerError, "set local description failed")
		return
	}

	select {
	case <-gatherComplete:
	case <-r.Context().Done():
		pc.Close()
		return
	}

	h.mu.Lock()
	h.peers = append(h.peers, pc)
	h.mu.Unlock()

	h.logger.Info("webrtc peer connected", "peers", h.PeerCount())

	listener := h.broadcaster.Subscribe()
	go h.streamToPeer(listener, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed ||
			s == webrtc.PeerConnectionStateDisconnected {
			h.broadcaster.Unsubscribe(listener)
			if h.removePeer(pc) {
				pc.Close()
				h.logger.Info("webrtc peer disconnected", "peers", h.PeerCount())
			}
		}
	})

	json.NewEncoder(w).Encode(pc.LocalDescription())
}

func (h *WebRTCHandler) streamToPeer(listener *Listener, track *webrtc.TrackLocalStaticSample) {
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := NewOpusEncoder()
	if err != nil {
		h.logger.Error("opus encoder", "error", err)
		return
	}

	for {
		select {
		case <-listener.Done():
			return
		case frame := <-listener.C:
			data, err := enc.Encode(frame, audio.OpusFrameSize, maxOpusDataBytes)
			if err != nil {
				h.logger.Warn("opus encode", "error", err)
				continue
			}
			if err := track.WriteSample(media.Sample{Data: data, Duration: audio.OpusFrameDuration}); err != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range h.peers {
		if p == pc {
			h.peers = append(h.peers[:i], h.peers[i+1:]...)
			return true
		}
	}
	return false
}

// NewOpusEncoder returns a 48 kHz stereo music encoder at the listen-along
// bitrate.
func NewOpusEncoder() (*gopus.Encoder, error) {
	enc, err := gopus.NewEncoder(audio.OpusSampleRate, audio.OpusChannels, gopus.Audio)
	if err != nil {
		return nil, err
	}
	enc.SetBitrate(opusBitrate)
	return enc, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
