// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Name identifies this server instance in logs and traces.
	Name string `mapstructure:"name"`
	// ShutdownTimeout bounds graceful shutdown of the gRPC listener.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds persistence settings for either backend.
type DatabaseConfig struct {
	// Driver selects the storage backend: "postgres" or "sqlite".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// SQLitePath is the database file used when Driver is "sqlite".
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GRPCConfig holds the action service listener settings.
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// RulesConfig holds the tunable knobs of combat and consequence resolution.
type RulesConfig struct {
	// EscalationThreshold is the transgression count at which protection
	// yields to a substitute encounter.
	EscalationThreshold int `mapstructure:"escalation_threshold"`
	// BuildingAt, TenseAt and ClimaxAt are the lower bounds of the tension bands.
	BuildingAt int `mapstructure:"building_at"`
	TenseAt    int `mapstructure:"tense_at"`
	ClimaxAt   int `mapstructure:"climax_at"`
	// FleeDC is the difficulty of escaping an active combat.
	FleeDC int `mapstructure:"flee_dc"`
	// CheckDC is the default ability check difficulty.
	CheckDC int `mapstructure:"check_dc"`
	// DefeatHealPercent is the share of max HP restored after a defeat.
	DefeatHealPercent int `mapstructure:"defeat_heal_percent"`
	// DefeatXPPenaltyPercent is the share of level progress lost after a defeat.
	DefeatXPPenaltyPercent int `mapstructure:"defeat_xp_penalty_percent"`
	// RecentActions is how many past actions feed the tension estimate.
	RecentActions int `mapstructure:"recent_actions"`
}

// NarrationConfig holds narration collaborator settings.
type NarrationConfig struct {
	// Provider is "anthropic" or "template".
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ContentConfig locates world blueprint content on disk.
type ContentConfig struct {
	BlueprintDir string `mapstructure:"blueprint_dir"`
}

// TracingConfig controls OpenTelemetry trace export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Narration NarrationConfig `mapstructure:"narration"`
	Content   ContentConfig   `mapstructure:"content"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateServer(c.Server),
		validateDatabase(c.Database),
		validateLogging(c.Logging),
		validateGRPC(c.GRPC),
		validateRules(c.Rules),
		validateNarration(c.Narration),
		validateTracing(c.Tracing),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Name == "" {
		return errors.New("server.name must not be empty")
	}
	if s.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	switch d.Driver {
	case "sqlite":
		if d.SQLitePath == "" {
			return errors.New("database.sqlite_path must not be empty when driver is sqlite")
		}
		return nil
	case "postgres":
	default:
		return fmt.Errorf("database.driver must be one of [postgres, sqlite], got %q", d.Driver)
	}

	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGRPC(g GRPCConfig) error {
	var errs []string
	if g.Host == "" {
		errs = append(errs, "grpc.host must not be empty")
	}
	if g.Port < 1 || g.Port > 65535 {
		errs = append(errs, fmt.Sprintf("grpc.port must be 1-65535, got %d", g.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRules(r RulesConfig) error {
	var errs []string
	if r.EscalationThreshold < 1 {
		errs = append(errs, fmt.Sprintf("rules.escalation_threshold must be >= 1, got %d", r.EscalationThreshold))
	}
	if !(0 < r.BuildingAt && r.BuildingAt < r.TenseAt && r.TenseAt < r.ClimaxAt && r.ClimaxAt <= 100) {
		errs = append(errs, fmt.Sprintf("rules tension bands must satisfy 0 < building_at < tense_at < climax_at <= 100, got %d/%d/%d",
			r.BuildingAt, r.TenseAt, r.ClimaxAt))
	}
	if r.FleeDC < 1 || r.FleeDC > 30 {
		errs = append(errs, fmt.Sprintf("rules.flee_dc must be 1-30, got %d", r.FleeDC))
	}
	if r.CheckDC < 1 || r.CheckDC > 30 {
		errs = append(errs, fmt.Sprintf("rules.check_dc must be 1-30, got %d", r.CheckDC))
	}
	if r.DefeatHealPercent < 1 || r.DefeatHealPercent > 100 {
		errs = append(errs, fmt.Sprintf("rules.defeat_heal_percent must be 1-100, got %d", r.DefeatHealPercent))
	}
	if r.DefeatXPPenaltyPercent < 0 || r.DefeatXPPenaltyPercent > 100 {
		errs = append(errs, fmt.Sprintf("rules.defeat_xp_penalty_percent must be 0-100, got %d", r.DefeatXPPenaltyPercent))
	}
	if r.RecentActions < 0 {
		errs = append(errs, "rules.recent_actions must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateNarration(n NarrationConfig) error {
	var errs []string
	switch n.Provider {
	case "template":
	case "anthropic":
		if n.APIKey == "" {
			errs = append(errs, "narration.api_key must not be empty when provider is anthropic")
		}
		if n.Model == "" {
			errs = append(errs, "narration.model must not be empty when provider is anthropic")
		}
	default:
		errs = append(errs, fmt.Sprintf("narration.provider must be one of [anthropic, template], got %q", n.Provider))
	}
	if n.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("narration.max_tokens must be >= 1, got %d", n.MaxTokens))
	}
	if n.Timeout <= 0 {
		errs = append(errs, "narration.timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTracing(t TracingConfig) error {
	if !t.Enabled {
		return nil
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be 0-1, got %v", t.SampleRatio)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// DNDAI_RULES_ESCALATION_THRESHOLD overrides rules.escalation_threshold, etc.
	v.SetEnvPrefix("DNDAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance populated only with default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "dndai-gameserver")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "dndai")
	v.SetDefault("database.password", "dndai")
	v.SetDefault("database.name", "dndai")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.sqlite_path", "dndai.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("grpc.host", "127.0.0.1")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("rules.escalation_threshold", 3)
	v.SetDefault("rules.building_at", 30)
	v.SetDefault("rules.tense_at", 55)
	v.SetDefault("rules.climax_at", 75)
	v.SetDefault("rules.flee_dc", 12)
	v.SetDefault("rules.check_dc", 12)
	v.SetDefault("rules.defeat_heal_percent", 50)
	v.SetDefault("rules.defeat_xp_penalty_percent", 15)
	v.SetDefault("rules.recent_actions", 5)

	v.SetDefault("narration.provider", "template")
	v.SetDefault("narration.model", "claude-sonnet-4-5")
	v.SetDefault("narration.max_tokens", 600)
	v.SetDefault("narration.timeout", "20s")

	v.SetDefault("content.blueprint_dir", "content/blueprints")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
}
