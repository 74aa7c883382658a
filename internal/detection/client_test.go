package detection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/markers"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSink struct {
	mu      sync.Mutex
	markers []markers.Marker
	verdict string
}

func (f *fakeSink) SetMarkers(ms []markers.Marker) error {
	if err := markers.Validate(ms); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers = append([]markers.Marker(nil), ms...)
	return nil
}

func (f *fakeSink) AddMarkers(ms ...markers.Marker) error {
	if err := markers.Validate(ms); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers = append(f.markers, ms...)
	return nil
}

func (f *fakeSink) SetVerdict(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdict = v
}

func (f *fakeSink) snapshot() ([]markers.Marker, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]markers.Marker(nil), f.markers...), f.verdict
}

func TestHandleEvent(t *testing.T) {
	marker := &markers.Marker{TimestampSeconds: 2.5, Kind: "splice"}
	bad := &markers.Marker{TimestampSeconds: -1, Kind: "splice"}

	tests := []struct {
		name        string
		ev          Event
		want        bool
		wantMarkers int
		wantVerdict string
	}{
		{"marker", Event{Event: EventMarker, Marker: marker}, true, 1, ""},
		{"marker without payload", Event{Event: EventMarker}, false, 0, ""},
		{"invalid marker", Event{Event: EventMarker, Marker: bad}, false, 0, ""},
		{"markers", Event{Event: EventMarkers, Markers: []markers.Marker{*marker, *marker}}, true, 2, ""},
		{"verdict", Event{Event: EventVerdict, Verdict: "likely synthetic"}, true, 0, "likely synthetic"},
		{"keepalive", Event{Event: "keepalive"}, false, 0, ""},
		{"other asset", Event{Event: EventVerdict, AssetID: "other", Verdict: "x"}, false, 0, ""},
		{"current asset", Event{Event: EventVerdict, AssetID: "a1", Verdict: "ok"}, true, 0, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			c := NewClient(Config{CurrentAsset: func() string { return "a1" }}, sink, newTestLogger())

			if got := c.HandleEvent(tt.ev, []byte(tt.name)); got != tt.want {
				t.Errorf("HandleEvent() = %v, want %v", got, tt.want)
			}
			ms, verdict := sink.snapshot()
			if len(ms) != tt.wantMarkers {
				t.Errorf("markers = %d, want %d", len(ms), tt.wantMarkers)
			}
			if verdict != tt.wantVerdict {
				t.Errorf("verdict = %q, want %q", verdict, tt.wantVerdict)
			}
		})
	}
}

func TestHandleEvent_Dedupe(t *testing.T) {
	sink := &fakeSink{}
	c := NewClient(Config{DedupeWindow: time.Minute}, sink, newTestLogger())

	ev := Event{ID: "e1", Event: EventMarker, Marker: &markers.Marker{TimestampSeconds: 1, Kind: "k"}}
	if !c.HandleEvent(ev, nil) {
		t.Fatal("first event not applied")
	}
	if c.HandleEvent(ev, nil) {
		t.Error("duplicate event applied")
	}

	// Without an ID the raw line is the key.
	noID := Event{Event: EventVerdict, Verdict: "v"}
	if !c.HandleEvent(noID, []byte(`{"event":"verdict","verdict":"v"}`)) {
		t.Error("first verdict not applied")
	}
	if c.HandleEvent(noID, []byte(`{"event":"verdict","verdict":"v"}`)) {
		t.Error("duplicate verdict applied")
	}

	ms, _ := sink.snapshot()
	if len(ms) != 1 {
		t.Errorf("markers = %d, want 1", len(ms))
	}
}

func TestHandleEvent_DedupeIsPerAsset(t *testing.T) {
	sink := &fakeSink{}
	current := "a1"
	c := NewClient(Config{
		DedupeWindow: time.Minute,
		CurrentAsset: func() string { return current },
	}, sink, newTestLogger())

	ev := Event{ID: "e1", Event: EventVerdict, Verdict: "likely synthetic"}
	if !c.HandleEvent(ev, nil) {
		t.Fatal("first event not applied")
	}
	if c.HandleEvent(ev, nil) {
		t.Error("duplicate event applied under the same asset")
	}

	// A new selection clears the verdict, so the same event must land again.
	current = "a2"
	sink.SetVerdict("")
	if !c.HandleEvent(ev, nil) {
		t.Error("event dropped after the asset changed")
	}
	if _, verdict := sink.snapshot(); verdict != "likely synthetic" {
		t.Errorf("verdict = %q, want %q", verdict, "likely synthetic")
	}
}

func TestCleanupDedupeMap(t *testing.T) {
	c := NewClient(Config{DedupeWindow: time.Minute}, &fakeSink{}, newTestLogger())
	c.dedupeMap["old"] = time.Now().Add(-2 * time.Minute)
	c.dedupeMap["new"] = time.Now()

	c.cleanupDedupeMap()

	if _, ok := c.dedupeMap["old"]; ok {
		t.Error("expired key not removed")
	}
	if _, ok := c.dedupeMap["new"]; !ok {
		t.Error("fresh key removed")
	}
}

func TestSubscribe_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"event":"open"}`)
		fmt.Fprintln(w, `{"id":"1","event":"markers","markers":[{"timestamp":1,"kind":"a"},{"timestamp":7.5,"kind":"b"}]}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"id":"2","event":"verdict","verdict":"human"}`)
	}))
	defer server.Close()

	sink := &fakeSink{}
	c := NewClient(Config{URL: server.URL}, sink, newTestLogger())

	n, err := c.subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe() error = %v", err)
	}
	if n != 2 {
		t.Errorf("applied = %d, want 2", n)
	}

	ms, verdict := sink.snapshot()
	if len(ms) != 2 || ms[1].TimestampSeconds != 7.5 {
		t.Errorf("markers = %+v", ms)
	}
	if verdict != "human" {
		t.Errorf("verdict = %q, want human", verdict)
	}
}

func TestSubscribe_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(Config{URL: server.URL}, &fakeSink{}, newTestLogger())
	if _, err := c.subscribe(context.Background()); err == nil {
		t.Error("subscribe() error = nil, want status error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"id":"1","event":"verdict","verdict":"human"}`)
	}))
	defer server.Close()

	sink := &fakeSink{}
	c := NewClient(Config{URL: server.URL, DedupeWindow: time.Minute}, sink, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, v := sink.snapshot(); v == "human" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("verdict never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
