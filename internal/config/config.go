package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPPort       int
	BearerToken    string
	MaxUploadBytes int64

	// Audio graph settings
	SampleRate    int
	QuantumFrames int
	OutputDevice  string

	// Transport settings
	FrameRate   int
	SkipSeconds float64

	// Waveform settings
	WaveformWidth  int
	WaveformHeight int
	AmplitudeScale int
	MarkerMargin   float64

	// Decode settings
	DecodeQueueCapacity int
	FFmpegPath          string

	// Listen-along settings
	StreamEnabled         bool
	WebRTCEnabled         bool
	DiscordToken          string
	GuildID               string
	DefaultVoiceChannelID string

	// Detection feed settings
	DetectionURL          string
	DetectionDedupeWindow time.Duration

	// Logging settings
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		// HTTP settings
		HTTPPort:       getEnvInt("HTTP_PORT", 8080),
		BearerToken:    os.Getenv("BEARER_TOKEN"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 200<<20)),

		// Audio graph settings
		SampleRate:    getEnvInt("SAMPLE_RATE", 48000),
		QuantumFrames: getEnvInt("QUANTUM_FRAMES", 960),
		OutputDevice:  getEnvString("OUTPUT_DEVICE", "null"),

		// Transport settings
		FrameRate:   getEnvInt("FRAME_RATE", 60),
		SkipSeconds: getEnvFloat("SKIP_SECONDS", 10),

		// Waveform settings
		WaveformWidth:  getEnvInt("WAVEFORM_WIDTH", 1200),
		WaveformHeight: getEnvInt("WAVEFORM_HEIGHT", 160),
		AmplitudeScale: getEnvInt("AMPLITUDE_SCALE", 1),
		MarkerMargin:   getEnvFloat("MARKER_MARGIN", 6),

		// Decode settings
		DecodeQueueCapacity: getEnvInt("DECODE_QUEUE_CAPACITY", 4),
		FFmpegPath:          getEnvString("FFMPEG_PATH", "ffmpeg"),

		// Listen-along settings
		StreamEnabled:         getEnvBool("STREAM_ENABLED", true),
		WebRTCEnabled:         getEnvBool("WEBRTC_ENABLED", true),
		DiscordToken:          os.Getenv("DISCORD_TOKEN"),
		GuildID:               os.Getenv("GUILD_ID"),
		DefaultVoiceChannelID: os.Getenv("DEFAULT_VOICE_CHANNEL_ID"),

		// Detection feed settings
		DetectionURL:          os.Getenv("DETECTION_URL"),
		DetectionDedupeWindow: getEnvDuration("DETECTION_DEDUPE_WINDOW", time.Minute),

		// Logging settings
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// DiscordEnabled reports whether all Discord listen-along settings are present.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.GuildID != "" && c.DefaultVoiceChannelID != ""
}

// FrameInterval is the transport update-loop period.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxUploadBytes < 1 {
		return errors.New("MAX_UPLOAD_BYTES must be at least 1")
	}

	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return errors.New("SAMPLE_RATE must be between 8000 and 192000")
	}

	if (c.WebRTCEnabled || c.DiscordEnabled()) && c.SampleRate != 48000 {
		return errors.New("SAMPLE_RATE must be 48000 when WebRTC or Discord listen-along is enabled")
	}

	if c.QuantumFrames < 1 {
		return errors.New("QUANTUM_FRAMES must be at least 1")
	}

	validOutputs := map[string]bool{"null": true, "speaker": true}
	if !validOutputs[c.OutputDevice] {
		return errors.New("OUTPUT_DEVICE must be one of: null, speaker")
	}

	if c.FrameRate < 1 || c.FrameRate > 240 {
		return errors.New("FRAME_RATE must be between 1 and 240")
	}

	if c.SkipSeconds <= 0 {
		return errors.New("SKIP_SECONDS must be positive")
	}

	if c.WaveformWidth < 1 || c.WaveformHeight < 1 {
		return errors.New("WAVEFORM_WIDTH and WAVEFORM_HEIGHT must be at least 1")
	}

	if c.AmplitudeScale < 1 || c.AmplitudeScale > 4 {
		return errors.New("AMPLITUDE_SCALE must be between 1 and 4")
	}

	if c.MarkerMargin < 0 {
		return errors.New("MARKER_MARGIN must be non-negative")
	}

	if c.DecodeQueueCapacity < 1 {
		return errors.New("DECODE_QUEUE_CAPACITY must be at least 1")
	}

	if c.DetectionDedupeWindow < 0 {
		return errors.New("DETECTION_DEDUPE_WINDOW must be non-negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as a float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
