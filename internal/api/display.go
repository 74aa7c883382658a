package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/markers"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/waveform"
)

// maxSurface bounds requested surface sizes.
const maxSurface = 8192

// WaveformResponse is the JSON form of GET /v1/waveform.
type WaveformResponse struct {
	Layout      waveform.Layout    `json:"layout"`
	Scale       int                `json:"amplitude_scale"`
	CurrentTime float64            `json:"current_time"`
	Duration    *float64           `json:"duration"`
	Envelope    *waveform.Envelope `json:"envelope"`
	Frame       waveform.Frame     `json:"frame"`
	Markers     []markers.Placed   `json:"markers"`
}

// handleWaveform handles GET /v1/waveform?width=&height=&scale=&format=.
func (s *Server) handleWaveform(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	width, err := queryInt(q.Get("width"), s.cfg.WaveformWidth)
	if err != nil || width < 1 || width > maxSurface {
		writeError(w, http.StatusBadRequest, "width must be between 1 and 8192")
		return
	}
	height, err := queryInt(q.Get("height"), s.cfg.WaveformHeight)
	if err != nil || height < 1 || height > maxSurface {
		writeError(w, http.StatusBadRequest, "height must be between 1 and 8192")
		return
	}
	scale, err := queryInt(q.Get("scale"), s.cfg.AmplitudeScale)
	if err == nil {
		err = waveform.ValidateScale(scale)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, waveform.ErrInvalidScale.Error())
		return
	}

	layout := waveform.Layout{Width: width, Height: height}
	frame := s.ctrl.Frame(layout, scale)

	switch q.Get("format") {
	case "png":
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := waveform.WritePNG(w, layout, frame); err != nil {
			s.logger.Warn("failed to write waveform png", "error", err)
		}
	case "", "json":
		snap := s.ctrl.Snapshot()
		writeJSON(w, http.StatusOK, WaveformResponse{
			Layout:      layout,
			Scale:       scale,
			CurrentTime: snap.CurrentTime,
			Duration:    snap.Duration,
			Envelope:    s.ctrl.Envelope(width, scale),
			Frame:       frame,
			Markers:     s.ctrl.PlacedMarkers(width),
		})
	default:
		writeError(w, http.StatusBadRequest, "format must be json or png")
	}
}

// handleListMarkers handles GET /v1/markers?width=.
func (s *Server) handleListMarkers(w http.ResponseWriter, r *http.Request) {
	width, err := queryInt(r.URL.Query().Get("width"), s.cfg.WaveformWidth)
	if err != nil || width < 1 || width > maxSurface {
		writeError(w, http.StatusBadRequest, "width must be between 1 and 8192")
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.PlacedMarkers(width))
}

// handleSetMarkers handles PUT /v1/markers with a JSON array of markers.
func (s *Server) handleSetMarkers(w http.ResponseWriter, r *http.Request) {
	var ms []markers.Marker
	if err := json.NewDecoder(r.Body).Decode(&ms); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.ctrl.SetMarkers(ms); err != nil {
		if errors.Is(err, markers.ErrInvalidTimestamp) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to set markers")
		return
	}
	s.logger.Info("markers replaced", "count", len(ms))
	writeJSON(w, http.StatusOK, s.ctrl.PlacedMarkers(s.cfg.WaveformWidth))
}

// handleSeekMarker handles POST /v1/markers/{index}/seek.
func (s *Server) handleSeekMarker(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	if err := s.ctrl.SeekToMarker(index); err != nil {
		status, msg := transportError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
