package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/engine"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/queue"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/samples"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/transport"
)

// multipartMemory is how much of a multipart upload is held in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// UploadResponse represents the response body for POST /v1/assets.
type UploadResponse struct {
	JobID   string `json:"job_id"`
	AssetID string `json:"asset_id"`
	Message string `json:"message"`
}

// JobResponse represents the response body for GET /v1/jobs/{id}.
type JobResponse struct {
	JobID  string       `json:"job_id"`
	Status queue.Status `json:"status"`
}

// TransportRequest is the body accepted by the seek, volume and click
// transport actions.
type TransportRequest struct {
	Time   *float64 `json:"time,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Width  int      `json:"width,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleUpload handles POST /v1/assets. The file is either the multipart
// "file" field or the raw request body named by X-Filename. Decoding runs on
// the queue; the response only acknowledges the upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	name, mimeType, data, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Warn("upload exceeds max size", "max", s.cfg.MaxUploadBytes)
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds maximum upload size")
			return
		}
		s.logger.Warn("failed to read upload", "error", err)
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	}

	asset := samples.NewRawAsset(name, mimeType, data)
	job := queue.NewDecodeJob(asset, true, 0)

	if err := s.selectAsset(asset, job); err != nil {
		switch {
		case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, queue.ErrDuplicateJob):
			writeError(w, http.StatusConflict, "duplicate job")
		default:
			s.logger.Error("failed to enqueue job", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		}
		return
	}

	s.logger.Info("asset upload accepted",
		"job_id", job.ID,
		"asset_id", asset.ID,
		"name", asset.Name,
		"bytes", len(data),
	)

	writeJSON(w, http.StatusAccepted, UploadResponse{
		JobID:   job.ID,
		AssetID: asset.ID,
		Message: "decode queued",
	})
}

// selectAsset marks asset as the current selection and queues its decode.
// The controller must know the new asset before the worker can finish it.
func (s *Server) selectAsset(asset *samples.RawAsset, job *queue.DecodeJob) error {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	s.ctrl.BeginLoad(asset.ID, asset.Name)
	if err := s.queue.Enqueue(job); err != nil {
		s.ctrl.LoadFailed(asset.ID, err)
		return err
	}
	return nil
}

func readUpload(r *http.Request) (name, mimeType string, data []byte, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err = io.ReadAll(r.Body)
		return r.Header.Get("X-Filename"), mediaType, data, err
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return "", "", nil, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, err
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	return header.Filename, header.Header.Get("Content-Type"), data, err
}

// handleCurrentAsset serves the raw bytes of the selected file, whether or
// not it decoded.
func (s *Server) handleCurrentAsset(w http.ResponseWriter, r *http.Request) {
	raw := s.store.Raw()
	if raw == nil {
		writeError(w, http.StatusNotFound, "no asset")
		return
	}
	ct := raw.MIME
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw.Data)))
	w.Header().Set("ETag", `"`+raw.SHA256+`"`)
	w.Write(raw.Data)
}

// handleJobStatus handles GET /v1/jobs/{id}.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, ok := s.queue.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, JobResponse{JobID: id, Status: status})
}

// handleState handles GET /v1/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// handleTransport handles POST /v1/transport/{action} and responds with
// the resulting snapshot.
func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")

	var req TransportRequest
	if needsBody(action) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	err := applyTransport(s.ctrl, action, req)
	if err != nil {
		status, msg := transportError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

var errUnknownAction = errors.New("unknown transport action")

type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func needsBody(action string) bool {
	return action == "seek" || action == "volume" || action == "click"
}

// applyTransport runs one named transport action. It is shared by the HTTP
// and websocket surfaces.
func applyTransport(ctrl *transport.Controller, action string, req TransportRequest) error {
	switch action {
	case "play":
		return ctrl.Play()
	case "pause":
		return ctrl.Pause()
	case "stop":
		return ctrl.Stop()
	case "skip-forward":
		return ctrl.SkipForward()
	case "skip-backward":
		return ctrl.SkipBackward()
	case "seek":
		if req.Time == nil {
			return badRequestError{"time is required"}
		}
		return ctrl.Seek(*req.Time)
	case "volume":
		if req.Volume == nil {
			return badRequestError{"volume is required"}
		}
		ctrl.SetVolume(*req.Volume)
		return nil
	case "click":
		if req.X == nil {
			return badRequestError{"x is required"}
		}
		return ctrl.Click(*req.X, req.Width)
	default:
		return errUnknownAction
	}
}

// transportError maps transport errors to HTTP statuses.
func transportError(err error) (int, string) {
	var bad badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case errors.Is(err, engine.ErrNotLoaded):
		return http.StatusConflict, err.Error()
	case errors.Is(err, transport.ErrInvalidSurface):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, transport.ErrMarkerNotFound), errors.Is(err, errUnknownAction):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "transport operation failed"
	}
}
