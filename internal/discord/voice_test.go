package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/audio"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/stream"
)

func TestErrNotConnected(t *testing.T) {
	if ErrNotConnected.Error() != "not connected to voice channel" {
		t.Errorf("ErrNotConnected = %q", ErrNotConnected.Error())
	}
}

func TestErrConnectionFailed(t *testing.T) {
	if ErrConnectionFailed.Error() != "failed to connect to voice channel" {
		t.Errorf("ErrConnectionFailed = %q", ErrConnectionFailed.Error())
	}
}

func TestVoiceManager_IsConnected_WhenNotConnected(t *testing.T) {
	// Can't test a real Discord connection without a token.
	vm := &VoiceManager{
		connected: false,
	}

	if vm.IsConnected() {
		t.Error("IsConnected() = true, want false")
	}
}

func TestVoiceManager_Relay_WhenNotConnected(t *testing.T) {
	vm := &VoiceManager{
		connected: false,
	}

	err := vm.Relay(context.Background(), make(chan []int16))
	if err != ErrNotConnected {
		t.Errorf("Relay() error = %v, want ErrNotConnected", err)
	}
}

func TestVoiceManager_ListenAlong_Unsubscribes(t *testing.T) {
	vm := &VoiceManager{}
	b := stream.NewBroadcaster()

	err := vm.ListenAlong(context.Background(), b)
	if err != ErrNotConnected {
		t.Errorf("ListenAlong() error = %v, want ErrNotConnected", err)
	}
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestVoiceManager_Disconnect_WhenNotConnected(t *testing.T) {
	vm := &VoiceManager{
		connected:       false,
		voiceConnection: nil,
	}

	if err := vm.Disconnect(); err != nil {
		t.Errorf("Disconnect() error = %v, want nil", err)
	}
}

func TestEncodeOpus(t *testing.T) {
	enc, err := stream.NewOpusEncoder()
	if err != nil {
		t.Fatalf("NewOpusEncoder: %v", err)
	}
	vm := &VoiceManager{opusEncoder: enc, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	frame := make([]int16, audio.OpusFrameSamples)
	for i := range frame {
		frame[i] = int16((i % 64) * 256)
	}

	data, err := vm.encodeOpus(frame)
	if err != nil {
		t.Fatalf("encodeOpus: %v", err)
	}
	if len(data) == 0 || len(data) > maxOpusDataBytes {
		t.Errorf("encoded %d bytes", len(data))
	}

	if _, err := vm.encodeOpus(frame[:10]); !errors.Is(err, ErrBadFrame) {
		t.Errorf("short frame error = %v, want ErrBadFrame", err)
	}
}

func TestSilent(t *testing.T) {
	tests := []struct {
		name  string
		frame []int16
		want  bool
	}{
		{"empty", nil, true},
		{"zeros", make([]int16, 8), true},
		{"one sample", []int16{0, 0, 1, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := silent(tt.frame); got != tt.want {
				t.Errorf("silent() = %v, want %v", got, tt.want)
			}
		})
	}
}
