// Package discord relays the player's live output into a Discord voice
// channel so a room can listen along.
package discord

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/audio"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/stream"
)

const (
	// voiceConnectTimeout is the maximum time to wait for voice connection readiness.
	voiceConnectTimeout = 10 * time.Second
	// voiceConnectPollInterval is the polling interval while waiting for connection.
	voiceConnectPollInterval = 100 * time.Millisecond
	// maxOpusDataBytes is the maximum size of an encoded Opus frame.
	maxOpusDataBytes = 4000
	// silenceHold is how long the bot keeps the speaking flag after the last
	// non-silent frame.
	silenceHold = 500 * time.Millisecond
)

var (
	// ErrNotConnected is returned when trying to send audio while not connected.
	ErrNotConnected = errors.New("not connected to voice channel")
	// ErrConnectionFailed is returned when voice connection fails.
	ErrConnectionFailed = errors.New("failed to connect to voice channel")
	// ErrBadFrame is returned for a PCM frame that is not one 20ms stereo frame.
	ErrBadFrame = errors.New("pcm frame must be 960 stereo samples")
)

// VoiceManager manages the Discord voice connection used for listen-along.
type VoiceManager struct {
	mu              sync.Mutex
	session         *discordgo.Session
	voiceConnection *discordgo.VoiceConnection
	guildID         string
	channelID       string
	logger          *slog.Logger
	connected       bool
	opusEncoder     *gopus.Encoder
}

// NewVoiceManager creates a new voice manager.
func NewVoiceManager(token, guildID, channelID string, logger *slog.Logger) (*VoiceManager, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	encoder, err := stream.NewOpusEncoder()
	if err != nil {
		return nil, err
	}

	return &VoiceManager{
		session:     session,
		guildID:     guildID,
		channelID:   channelID,
		logger:      logger,
		opusEncoder: encoder,
	}, nil
}

// Open opens the Discord session.
func (vm *VoiceManager) Open() error {
	return vm.session.Open()
}

// Close closes the Discord session and voice connection.
func (vm *VoiceManager) Close() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection != nil {
		vm.voiceConnection.Disconnect()
		vm.voiceConnection = nil
	}
	vm.connected = false

	return vm.session.Close()
}

// Connect joins the configured voice channel.
func (vm *VoiceManager) Connect(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.connected && vm.voiceConnection != nil {
		return nil
	}

	vm.logger.Info("connecting to voice channel", "guild_id", vm.guildID, "channel_id", vm.channelID)

	// Deafened: listen-along only sends.
	vc, err := vm.session.ChannelVoiceJoin(vm.guildID, vm.channelID, false, true)
	if err != nil {
		return err
	}

	// discordgo's Ready is a bool, so we poll with timeout
	deadline := time.Now().Add(voiceConnectTimeout)
	for {
		if ctx.Err() != nil {
			vc.Disconnect()
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			vc.Disconnect()
			return ErrConnectionFailed
		}
		if vc.Ready {
			break
		}
		time.Sleep(voiceConnectPollInterval)
	}

	vm.voiceConnection = vc
	vm.connected = true
	vm.logger.Info("connected to voice channel")

	return nil
}

// Disconnect leaves the voice channel.
func (vm *VoiceManager) Disconnect() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection == nil {
		return nil
	}

	vm.logger.Info("disconnecting from voice channel")
	err := vm.voiceConnection.Disconnect()
	vm.voiceConnection = nil
	vm.connected = false

	return err
}

// IsConnected returns whether the bot is connected to voice.
func (vm *VoiceManager) IsConnected() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.connected && vm.voiceConnection != nil
}

// ListenAlong subscribes to b and relays its frames until ctx is done.
func (vm *VoiceManager) ListenAlong(ctx context.Context, b *stream.Broadcaster) error {
	listener := b.Subscribe()
	defer b.Unsubscribe(listener)
	return vm.Relay(ctx, listener.C)
}

// Relay encodes each 48kHz stereo frame from frames and sends it to the
// voice channel. Silent frames are not sent so Discord sees the bot stop
// speaking while playback is paused.
func (vm *VoiceManager) Relay(ctx context.Context, frames <-chan []int16) error {
	vm.mu.Lock()
	vc := vm.voiceConnection
	connected := vm.connected
	vm.mu.Unlock()

	if !connected || vc == nil {
		return ErrNotConnected
	}

	speaking := false
	var lastSound time.Time
	setSpeaking := func(on bool) {
		if speaking == on {
			return
		}
		if err := vc.Speaking(on); err != nil {
			vm.logger.Error("failed to set speaking state", "error", err, "speaking", on)
		}
		speaking = on
	}
	defer setSpeaking(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			now := time.Now()
			if !silent(frame) {
				lastSound = now
			} else if now.Sub(lastSound) > silenceHold {
				setSpeaking(false)
				continue
			}
			setSpeaking(true)

			opusData, err := vm.encodeOpus(frame)
			if err != nil {
				vm.logger.Error("opus encoding failed", "error", err)
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case vc.OpusSend <- opusData:
			}
		}
	}
}

// encodeOpus encodes one 20ms interleaved stereo frame.
func (vm *VoiceManager) encodeOpus(frame []int16) ([]byte, error) {
	if len(frame) != audio.OpusFrameSamples {
		return nil, ErrBadFrame
	}
	return vm.opusEncoder.Encode(frame, audio.OpusFrameSize, maxOpusDataBytes)
}

func silent(frame []int16) bool {
	for _, s := range frame {
		if s != 0 {
			return false
		}
	}
	return true
}
