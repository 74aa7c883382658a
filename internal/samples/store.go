package samples

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// assetNamespace seeds content-derived asset IDs.
var assetNamespace = uuid.MustParse("8c0d4a52-6f1e-4c55-9a7e-2b7f4e0f3a11")

// RawAsset is an uploaded file as received, kept even when decoding fails.
type RawAsset struct {
	ID     string
	Name   string
	MIME   string
	Data   []byte
	SHA256 string
}

// NewRawAsset wraps uploaded bytes. The ID is a name-based UUID of the
// content hash, so identical bytes always map to the same ID.
func NewRawAsset(name, mimeType string, data []byte) *RawAsset {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	return &RawAsset{
		ID:     uuid.NewSHA1(assetNamespace, sum[:]).String(),
		Name:   name,
		MIME:   mimeType,
		Data:   data,
		SHA256: digest,
	}
}

// Result is delivered by DecodeAsync.
type Result struct {
	Audio *DecodedAudio
	Err   error
}

// Store owns the current raw asset and its decoded PCM.
type Store struct {
	mu      sync.RWMutex
	decoder *Decoder
	logger  *slog.Logger
	raw     *RawAsset
	decoded *DecodedAudio
	lastErr error
}

// NewStore creates an empty store.
func NewStore(decoder *Decoder, logger *slog.Logger) *Store {
	return &Store{decoder: decoder, logger: logger}
}

// Decode installs asset as the current file and decodes it. The raw asset is
// available through Raw immediately, before decoding finishes. If a newer
// asset replaces this one while decoding, the stale result is discarded and
// returned to the caller only.
func (s *Store) Decode(ctx context.Context, asset *RawAsset) (*DecodedAudio, error) {
	s.mu.Lock()
	s.raw = asset
	s.decoded = nil
	s.lastErr = nil
	s.mu.Unlock()

	decoded, err := s.decoder.Decode(ctx, asset)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raw != asset {
		s.logger.Debug("discarding stale decode", "asset_id", asset.ID)
		return decoded, err
	}

	if err != nil {
		s.lastErr = err
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			s.logger.Warn("audio decode failed, waveform disabled", "asset_id", asset.ID, "name", asset.Name, "error", err)
		}
		return nil, err
	}

	s.decoded = decoded
	s.logger.Info("audio decoded",
		"asset_id", asset.ID,
		"sample_rate", decoded.SampleRate(),
		"channels", decoded.NumChannels(),
		"duration", decoded.DurationSeconds(),
	)
	return decoded, nil
}

// DecodeAsync runs Decode on its own goroutine. The channel receives exactly
// one Result and is then closed.
func (s *Store) DecodeAsync(ctx context.Context, asset *RawAsset) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		decoded, err := s.Decode(ctx, asset)
		out <- Result{Audio: decoded, Err: err}
	}()
	return out
}

// Current returns the decoded audio, or nil when nothing is decoded.
func (s *Store) Current() *DecodedAudio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decoded
}

// Raw returns the most recent raw asset, decoded or not.
func (s *Store) Raw() *RawAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

// LastError returns the decode error of the current asset, if any.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Duration returns the decoded duration; ok is false when unknown.
func (s *Store) Duration() (seconds float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.decoded == nil {
		return 0, false
	}
	return s.decoded.DurationSeconds(), true
}

// Clear drops the current asset.
func (s *Store) Clear() {
	s.mu.Lock()
	s.raw = nil
	s.decoded = nil
	s.lastErr = nil
	s.mu.Unlock()
}
