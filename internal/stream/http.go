package stream

import (
	"log/slog"
	"net/http"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/audio"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/graph"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/wav"
)

// HTTPHandler serves the live output as an open-ended 16-bit WAV stream.
type HTTPHandler struct {
	broadcaster *Broadcaster
	sampleRate  int
	logger      *slog.Logger
}

// NewHTTPHandler creates an HTTP stream handler for output at sampleRate.
func NewHTTPHandler(b *Broadcaster, sampleRate int, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{broadcaster: b, sampleRate: sampleRate, logger: logger}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	header := wav.Header(wav.FormatPCM, h.sampleRate, graph.Channels, 16, wav.StreamingSize)
	if _, err := w.Write(header); err != nil {
		return
	}
	flusher.Flush()

	h.logger.Info("stream listener connected", "remote_addr", r.RemoteAddr, "listeners", h.broadcaster.ListenerCount())
	defer h.logger.Info("stream listener disconnected", "remote_addr", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-listener.Done():
			return
		case frame := <-listener.C:
			if _, err := w.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
