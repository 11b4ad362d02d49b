package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	CORSAllowedOrigins map[string]struct{}

	// Backend realtime connection.
	BackendURL            string
	BackendAPIKey         string
	BackendModel          string
	BackendConnectTimeout time.Duration

	// Voice and audio negotiation.
	Voice              string
	InputAudioFormat   string
	OutputAudioFormat  string
	TranscriptionModel string

	// Storage.
	PostgresDSN     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	TurnWindowSize  int
	TurnWindowTTL   time.Duration
	MediaCooldown   time.Duration
	AlertWebhookURL string

	// Music catalog.
	MusicBaseURL string
	MusicAPIKey  string

	// Per-session websocket behavior.
	WSMaxJSONMessageBytes int64
	WSPingInterval        time.Duration
	WSWriteTimeout        time.Duration
	WSReadTimeout         time.Duration
	MaxSessionDuration    time.Duration
	OutboundQueueSize     int

	ToolTimeout time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                  envOr("AMPARO_ADDR", ":8080"),
		AuthMode:              AuthMode(envOr("AMPARO_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:               make(map[string]struct{}),
		CORSAllowedOrigins:    make(map[string]struct{}),
		BackendURL:            envOr("AMPARO_BACKEND_URL", "wss://api.openai.com/v1/realtime"),
		BackendAPIKey:         strings.TrimSpace(os.Getenv("AMPARO_BACKEND_API_KEY")),
		BackendModel:          envOr("AMPARO_BACKEND_MODEL", "gpt-4o-realtime-preview"),
		BackendConnectTimeout: envDurationOr("AMPARO_BACKEND_CONNECT_TIMEOUT", 15*time.Second),
		Voice:                 envOr("AMPARO_VOICE", "alloy"),
		InputAudioFormat:      envOr("AMPARO_AUDIO_IN_FORMAT", "pcm16"),
		OutputAudioFormat:     envOr("AMPARO_AUDIO_OUT_FORMAT", "pcm16"),
		TranscriptionModel:    envOr("AMPARO_TRANSCRIPTION_MODEL", "whisper-1"),
		PostgresDSN:           strings.TrimSpace(os.Getenv("AMPARO_POSTGRES_DSN")),
		RedisAddr:             envOr("AMPARO_REDIS_ADDR", "localhost:6379"),
		RedisPassword:         strings.TrimSpace(os.Getenv("AMPARO_REDIS_PASSWORD")),
		RedisDB:               envIntOr("AMPARO_REDIS_DB", 0),
		TurnWindowSize:        envIntOr("AMPARO_TURN_WINDOW_SIZE", 20),
		TurnWindowTTL:         envDurationOr("AMPARO_TURN_WINDOW_TTL", 48*time.Hour),
		MediaCooldown:         envDurationOr("AMPARO_MEDIA_COOLDOWN", 2*time.Hour),
		AlertWebhookURL:       strings.TrimSpace(os.Getenv("AMPARO_ALERT_WEBHOOK_URL")),
		MusicBaseURL:          strings.TrimSpace(os.Getenv("AMPARO_MUSIC_BASE_URL")),
		MusicAPIKey:           strings.TrimSpace(os.Getenv("AMPARO_MUSIC_API_KEY")),
		WSMaxJSONMessageBytes: envInt64Or("AMPARO_WS_MAX_JSON_MESSAGE_BYTES", 256*1024),
		WSPingInterval:        envDurationOr("AMPARO_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:        envDurationOr("AMPARO_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:         envDurationOr("AMPARO_WS_READ_TIMEOUT", 0),
		MaxSessionDuration:    envDurationOr("AMPARO_MAX_SESSION_DURATION", 2*time.Hour),
		OutboundQueueSize:     envIntOr("AMPARO_OUTBOUND_QUEUE_SIZE", 128),
		ToolTimeout:           envDurationOr("AMPARO_TOOL_TIMEOUT", 10*time.Second),
		ReadHeaderTimeout:     envDurationOr("AMPARO_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:           envDurationOr("AMPARO_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:   envDurationOr("AMPARO_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("AMPARO_AUTH_MODE must be one of required|disabled")
	}

	for _, key := range splitCSV(os.Getenv("AMPARO_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}
	for _, origin := range splitCSV(os.Getenv("AMPARO_CORS_ALLOWED_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("AMPARO_API_KEYS must be set when AMPARO_AUTH_MODE=required")
	}
	if strings.TrimSpace(cfg.BackendURL) == "" {
		return Config{}, fmt.Errorf("AMPARO_BACKEND_URL must not be empty")
	}
	if cfg.BackendAPIKey == "" {
		return Config{}, fmt.Errorf("AMPARO_BACKEND_API_KEY must be set")
	}
	if cfg.BackendConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("AMPARO_BACKEND_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("AMPARO_POSTGRES_DSN must be set")
	}
	if cfg.TurnWindowSize <= 0 {
		return Config{}, fmt.Errorf("AMPARO_TURN_WINDOW_SIZE must be > 0")
	}
	if cfg.TurnWindowTTL <= 0 {
		return Config{}, fmt.Errorf("AMPARO_TURN_WINDOW_TTL must be > 0")
	}
	if cfg.MediaCooldown < 0 {
		return Config{}, fmt.Errorf("AMPARO_MEDIA_COOLDOWN must be >= 0")
	}
	if cfg.WSMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("AMPARO_WS_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("AMPARO_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("AMPARO_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("AMPARO_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.MaxSessionDuration < 0 {
		return Config{}, fmt.Errorf("AMPARO_MAX_SESSION_DURATION must be >= 0")
	}
	if cfg.OutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("AMPARO_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("AMPARO_TOOL_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("AMPARO_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("AMPARO_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("AMPARO_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
