package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	Proctor ProctorConfig `koanf:"proctor"`
	Vision  VisionConfig  `koanf:"vision"`
	Shadow  ShadowConfig  `koanf:"shadow"`
	Alerts  AlertsConfig  `koanf:"alerts"`

	Security  SecurityConfig  `koanf:"security"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	UploadDir       string        `koanf:"upload_dir"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ProctorConfig tunes the client-session monitoring components.
type ProctorConfig struct {
	MaxViolations    int           `koanf:"max_violations"`
	SmoothingWindow  time.Duration `koanf:"smoothing_window"`
	MinAwayDuration  time.Duration `koanf:"min_away_duration"`
	MinConfidence    float64       `koanf:"min_confidence"`
	SafeZoneMarginPx float64       `koanf:"safe_zone_margin_px"`
	ChunkDuration    time.Duration `koanf:"chunk_duration"`
	EventBuffer      int           `koanf:"event_buffer"`
}

// VisionConfig tunes the bounded-concurrency vision analysis queue.
type VisionConfig struct {
	MaxConcurrent int    `koanf:"max_concurrent"`
	WorkerCommand string `koanf:"worker_command"`
	Model         string `koanf:"model"`
}

// ShadowConfig tunes the AI answer-analysis orchestrator.
type ShadowConfig struct {
	APIKey        string `koanf:"api_key"`
	ContextWindow int    `koanf:"context_window"`
	FFmpegPath    string `koanf:"ffmpeg_path"`
	AudioModel    string `koanf:"audio_model"`
	TextModel     string `koanf:"text_model"`
	SpeechToText  string `koanf:"speech_to_text"`
}

type AlertsConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	Lookback     time.Duration `koanf:"lookback"`
}

type SecurityConfig struct {
	JWTSecret   string          `koanf:"jwt_secret"`
	TokenExpiry time.Duration   `koanf:"token_expiry"`
	RateLimit   RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

type TelemetryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	OTLPEndpoint  string        `koanf:"otlp_endpoint"`
	SamplingRate  float64       `koanf:"sampling_rate"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load defaults
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            4000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			UploadDir:       "./uploads",
			MaxUploadBytes:  50 << 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Proctor: ProctorConfig{
			MaxViolations:    3,
			SmoothingWindow:  800 * time.Millisecond,
			MinAwayDuration:  1500 * time.Millisecond,
			MinConfidence:    0.5,
			SafeZoneMarginPx: 60,
			ChunkDuration:    15 * time.Second,
			EventBuffer:      256,
		},
		Vision: VisionConfig{
			MaxConcurrent: 2,
			WorkerCommand: "process_video",
			Model:         "yolov8n.pt",
		},
		Shadow: ShadowConfig{
			ContextWindow: 3,
			FFmpegPath:    "ffmpeg",
			AudioModel:    "gpt-4o-audio-preview",
			TextModel:     "gpt-4o",
			SpeechToText:  "whisper-1",
		},
		Alerts: AlertsConfig{
			PollInterval: 3 * time.Second,
			Lookback:     30 * time.Second,
		},
		Security: SecurityConfig{
			TokenExpiry: 24 * time.Hour,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 50,
				BurstSize:         100,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			OTLPEndpoint:  "localhost:4317",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			BatchTimeout:  5 * time.Second,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if exists
	if err := k.Load(file.Provider("configs/config.yaml"), yaml.Parser()); err != nil {
		// Config file is optional
	}

	// Override with environment variables
	if err := k.Load(env.Provider("PROCTOR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "PROCTOR_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
