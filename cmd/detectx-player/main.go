package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/api"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/audio"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/config"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/detection"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/discord"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/engine"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/graph"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/logging"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/output"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/playback"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/queue"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/samples"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/stream"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/transport"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/waveform"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting detectx-player", "version", "0.1.0")

	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"sample_rate", cfg.SampleRate,
		"quantum_frames", cfg.QuantumFrames,
		"output_device", cfg.OutputDevice,
		"frame_rate", cfg.FrameRate,
		"decode_queue_capacity", cfg.DecodeQueueCapacity,
		"stream_enabled", cfg.StreamEnabled,
		"webrtc_enabled", cfg.WebRTCEnabled,
		"discord_enabled", cfg.DiscordEnabled(),
		"detection_enabled", cfg.DetectionURL != "",
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	// Listen-along fan-out. The tap only exists when some sink consumes it.
	broadcaster := stream.NewBroadcaster()
	var tap output.Tap
	if cfg.StreamEnabled || cfg.WebRTCEnabled || cfg.DiscordEnabled() {
		tap = stream.NewTap(broadcaster, cfg.SampleRate/50)
	}

	// Audio graph and realtime output
	gctx, err := graph.NewContext(cfg.SampleRate, cfg.QuantumFrames, nil)
	if err != nil {
		logger.Error("failed to create audio context", "error", err)
		os.Exit(1)
	}
	defer gctx.Close()

	var device output.Device
	switch cfg.OutputDevice {
	case "speaker":
		device, err = output.NewSpeaker(gctx, tap, logging.Component(logger, "output"))
		if err != nil {
			logger.Error("failed to open speaker", "error", err)
			os.Exit(1)
		}
	default:
		device = output.NewNull(gctx, tap, logging.Component(logger, "output"))
	}

	eng := engine.New(gctx, logging.Component(logger, "engine"))
	renderer := waveform.NewRenderer(waveform.DefaultTheme)

	opts := transport.DefaultOptions()
	opts.SkipSeconds = cfg.SkipSeconds
	opts.MarkerMargin = cfg.MarkerMargin
	opts.FrameInterval = cfg.FrameInterval()
	ctrl := transport.New(eng, renderer, opts, logging.Component(logger, "transport"))

	// Decode pipeline; ffmpeg is only a fallback for non-native formats
	var conv *audio.Converter
	if path, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		logger.Warn("ffmpeg not available, only WAV and MP3 will decode", "ffmpeg_path", cfg.FFmpegPath, "error", err)
	} else {
		conv = audio.NewConverterWithPath(path)
	}
	store := samples.NewStore(samples.NewDecoder(conv, logger), logging.Component(logger, "samples"))

	// Discord listen-along
	var voiceManager *discord.VoiceManager
	if cfg.DiscordEnabled() {
		voiceManager, err = discord.NewVoiceManager(
			cfg.DiscordToken,
			cfg.GuildID,
			cfg.DefaultVoiceChannelID,
			logging.Component(logger, "discord"),
		)
		if err != nil {
			logger.Error("failed to create voice manager", "error", err)
			os.Exit(1)
		}

		if err := voiceManager.Open(); err != nil {
			logger.Error("failed to open Discord session", "error", err)
			os.Exit(1)
		}
		defer voiceManager.Close()
		logger.Info("Discord session opened")
	}

	decodeQueue := queue.NewQueue(cfg.DecodeQueueCapacity, logging.Component(logger, "queue"))
	decodeQueue.SetHandler(playback.NewHandler(store, ctrl, logger).Handle)
	decodeQueue.SetJobCompletedCallback(func(job *queue.DecodeJob, status queue.Status) {
		logger.Debug("decode job finished", "job_id", job.ID, "asset_id", job.Asset.ID, "status", status)
	})

	// Set shutdown callback to disconnect from voice during graceful shutdown
	decodeQueue.SetShutdownCallback(func() {
		if voiceManager != nil && voiceManager.IsConnected() {
			if err := voiceManager.Disconnect(); err != nil {
				logger.Error("failed to disconnect from voice during shutdown", "error", err)
			} else {
				logger.Info("disconnected from voice channel during shutdown")
			}
		}
	})

	decodeQueue.Start()
	defer decodeQueue.Stop()

	deps := api.Deps{
		Controller: ctrl,
		Queue:      decodeQueue,
		Store:      store,
	}
	if cfg.StreamEnabled {
		deps.Stream = stream.NewHTTPHandler(broadcaster, cfg.SampleRate, logging.Component(logger, "stream"))
	}
	if cfg.WebRTCEnabled {
		rtc := stream.NewWebRTCHandler(broadcaster, logging.Component(logger, "webrtc"))
		defer rtc.Close()
		deps.Offer = rtc
	}

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error("component failed", "component", name, "error", err)
				cancel()
			}
		}()
	}

	run("output", device.Run)
	run("transport", ctrl.Run)

	if voiceManager != nil {
		run("discord", func(ctx context.Context) error {
			if err := voiceManager.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := voiceManager.ListenAlong(ctx, broadcaster); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if cfg.DetectionURL != "" {
		feed := detection.NewClient(detection.Config{
			URL:          cfg.DetectionURL,
			DedupeWindow: cfg.DetectionDedupeWindow,
			CurrentAsset: func() string { return ctrl.Snapshot().AssetID },
		}, ctrl, logging.Component(logger, "detection"))
		run("detection", feed.Run)
	}

	// Create and start HTTP server
	server := api.New(cfg, logger, deps)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")
}
