package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string          `yaml:"discord_token"`
	DatabasePath      string          `yaml:"database_path"`
	LogLevel          string          `yaml:"log_level"`
	DefaultLogChannel string          `yaml:"default_log_channel"`
	Health            HealthConfig    `yaml:"health"`
	Blacklist         BlacklistConfig `yaml:"blacklist"`
	Warnings          WarningsConfig  `yaml:"warnings"`
	AntiPing          AntiPingConfig  `yaml:"anti_ping"`
	Notifications     NotifyConfig    `yaml:"notifications"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// BlacklistConfig controls the cross-server blacklist workflow. The
// authorized-user list is fixed for the lifetime of the process: changing it
// requires a restart.
type BlacklistConfig struct {
	RegistryURL        string   `yaml:"registry_url"`
	IntakeChannelID    string   `yaml:"intake_channel_id"`
	AuthorizedUsers    []string `yaml:"authorized_users"`
	CancelRequiresAuth bool     `yaml:"cancel_requires_auth"`
	CheckRatePerSecond float64  `yaml:"check_rate_per_second"`
	CheckBurst         int      `yaml:"check_burst"`
}

type WarningsConfig struct {
	MaxBeforeKick int `yaml:"max_before_kick"`
}

type AntiPingConfig struct {
	MuteMinutes int `yaml:"mute_minutes"`
}

type NotifyConfig struct {
	AuditToChannel bool        `yaml:"audit_to_channel"`
	EmbedColors    EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:      "/data/warden.db",
		LogLevel:          "info",
		DefaultLogChannel: "",
		Health:            HealthConfig{Enabled: false, Addr: ":8080"},
		Blacklist: BlacklistConfig{
			RegistryURL:        "http://localhost:5000",
			CancelRequiresAuth: false,
			CheckRatePerSecond: 5,
			CheckBurst:         10,
		},
		Warnings: WarningsConfig{MaxBeforeKick: 5},
		AntiPing: AntiPingConfig{MuteMinutes: 5},
		Notifications: NotifyConfig{
			AuditToChannel: true,
			EmbedColors: EmbedColors{
				Action:  0xF59E0B,
				Warning: 0xEF4444,
				Error:   0xF97316,
			},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Blacklist.RegistryURL == "" {
		return Config{}, errors.New("blacklist registry URL is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Blacklist.RegistryURL = envString("REGISTRY_URL", cfg.Blacklist.RegistryURL)
	cfg.Blacklist.IntakeChannelID = envString("INTAKE_CHANNEL_ID", cfg.Blacklist.IntakeChannelID)
	cfg.Blacklist.CancelRequiresAuth = envBool("CANCEL_REQUIRES_AUTH", cfg.Blacklist.CancelRequiresAuth)
	cfg.Blacklist.CheckRatePerSecond = envFloat("REGISTRY_CHECK_RATE", cfg.Blacklist.CheckRatePerSecond)
	cfg.Blacklist.CheckBurst = envInt("REGISTRY_CHECK_BURST", cfg.Blacklist.CheckBurst)
	if value := os.Getenv("AUTHORIZED_USERS"); value != "" {
		cfg.Blacklist.AuthorizedUsers = splitList(value)
	}
	cfg.Warnings.MaxBeforeKick = envInt("MAX_WARNINGS_BEFORE_KICK", cfg.Warnings.MaxBeforeKick)
	cfg.AntiPing.MuteMinutes = envInt("ANTI_PING_MUTE_MINUTES", cfg.AntiPing.MuteMinutes)
	cfg.Notifications.AuditToChannel = envBool("AUDIT_TO_CHANNEL", cfg.Notifications.AuditToChannel)
	cfg.Notifications.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.Notifications.EmbedColors.Action)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
