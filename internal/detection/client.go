// Package detection subscribes to the upstream analysis service's event
// feed and hands its markers and verdicts to the player as display data.
package detection

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/markers"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	// maxLineBytes bounds one NDJSON event; a full marker list can be large.
	maxLineBytes = 1 << 20
)

// Event types on the feed.
const (
	EventMarker  = "marker"
	EventMarkers = "markers"
	EventVerdict = "verdict"
)

// Event is one line of the NDJSON feed.
type Event struct {
	ID      string           `json:"id,omitempty"`
	Event   string           `json:"event"`
	AssetID string           `json:"asset_id,omitempty"`
	Marker  *markers.Marker  `json:"marker,omitempty"`
	Markers []markers.Marker `json:"markers,omitempty"`
	Verdict string           `json:"verdict,omitempty"`
}

// Sink receives detection results.
type Sink interface {
	SetMarkers(ms []markers.Marker) error
	AddMarkers(ms ...markers.Marker) error
	SetVerdict(v string)
}

// Config configures the feed client.
type Config struct {
	URL          string
	DedupeWindow time.Duration
	// CurrentAsset, if set, returns the loaded asset's ID. Events tagged with
	// another asset are dropped.
	CurrentAsset func() string
}

// Client follows the detection feed, reconnecting with exponential backoff.
type Client struct {
	cfg        Config
	sink       Sink
	logger     *slog.Logger
	httpClient *http.Client

	dedupeMap map[string]time.Time
	dedupeMu  sync.Mutex
}

// NewClient creates a new detection feed client.
func NewClient(cfg Config, sink Sink, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		// No timeout: the feed is a long-lived stream.
		httpClient: &http.Client{},
		dedupeMap:  make(map[string]time.Time),
	}
}

// Run follows the feed until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	if c.cfg.DedupeWindow > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.dedupeCleanupLoop(ctx)
		}()
	}

	c.subscribeLoop(ctx)
	wg.Wait()
	return nil
}

// subscribeLoop reconnects on errors. The backoff resets after a connection
// that delivered at least one event.
func (c *Client) subscribeLoop(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		c.logger.Info("subscribing to detection feed", "url", c.cfg.URL)

		n, err := c.subscribe(ctx)
		if ctx.Err() != nil {
			return
		}
		if n > 0 {
			backoff = initialBackoff
		}
		if err != nil {
			c.logger.Warn("detection feed error, reconnecting", "error", err, "backoff", backoff)
		} else {
			c.logger.Info("detection feed closed, reconnecting", "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

// subscribe reads the feed until it ends and returns the number of events
// applied.
func (c *Client) subscribe(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info("connected to detection feed")

	applied := 0
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			c.logger.Warn("failed to parse detection event", "error", err, "line", string(line))
			continue
		}

		if c.HandleEvent(ev, line) {
			applied++
		}
	}

	if err := scanner.Err(); err != nil {
		return applied, fmt.Errorf("scanner error: %w", err)
	}
	return applied, nil
}

// HandleEvent applies one event to the sink and reports whether it was
// applied. raw is used as the dedupe key when the event has no ID.
func (c *Client) HandleEvent(ev Event, raw []byte) bool {
	switch ev.Event {
	case EventMarker, EventMarkers, EventVerdict:
	default:
		c.logger.Debug("skipping detection event", "event", ev.Event)
		return false
	}

	asset := ev.AssetID
	if c.cfg.CurrentAsset != nil {
		current := c.cfg.CurrentAsset()
		if ev.AssetID != "" && ev.AssetID != current {
			c.logger.Debug("skipping event for another asset", "event", ev.Event, "asset_id", ev.AssetID)
			return false
		}
		asset = current
	}

	if c.cfg.DedupeWindow > 0 {
		key := dedupeKey(asset, ev, raw)
		if c.isDuplicate(key) {
			c.logger.Debug("skipping duplicate detection event", "id", ev.ID, "dedupe_key", key)
			return false
		}
		c.recordDedupeKey(key)
	}

	var err error
	switch ev.Event {
	case EventMarker:
		if ev.Marker == nil {
			c.logger.Warn("marker event without marker", "id", ev.ID)
			return false
		}
		err = c.sink.AddMarkers(*ev.Marker)
	case EventMarkers:
		err = c.sink.SetMarkers(ev.Markers)
	case EventVerdict:
		c.sink.SetVerdict(ev.Verdict)
	}
	if err != nil {
		c.logger.Warn("rejected detection event", "event", ev.Event, "id", ev.ID, "error", err)
		return false
	}

	c.logger.Info("applied detection event", "event", ev.Event, "id", ev.ID, "markers", len(ev.Markers))
	return true
}

// dedupeKey scopes an event to the asset it was applied to, so replaying
// an event after the selection changes applies it again.
func dedupeKey(asset string, ev Event, raw []byte) string {
	if ev.ID != "" {
		return asset + "/" + ev.ID
	}
	hash := sha256.Sum256(raw)
	return asset + "/" + hex.EncodeToString(hash[:8])
}

// isDuplicate checks if a dedupe key has been seen within the dedupe window.
func (c *Client) isDuplicate(key string) bool {
	c.dedupeMu.Lock()
	defer c.dedupeMu.Unlock()

	if seenAt, ok := c.dedupeMap[key]; ok {
		if time.Since(seenAt) < c.cfg.DedupeWindow {
			return true
		}
	}
	return false
}

func (c *Client) recordDedupeKey(key string) {
	c.dedupeMu.Lock()
	defer c.dedupeMu.Unlock()
	c.dedupeMap[key] = time.Now()
}

func (c *Client) dedupeCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.DedupeWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanupDedupeMap()
		}
	}
}

// cleanupDedupeMap removes dedupe keys older than the dedupe window.
func (c *Client) cleanupDedupeMap() {
	c.dedupeMu.Lock()
	defer c.dedupeMu.Unlock()

	now := time.Now()
	for key, seenAt := range c.dedupeMap {
		if now.Sub(seenAt) >= c.cfg.DedupeWindow {
			delete(c.dedupeMap, key)
		}
	}
}
