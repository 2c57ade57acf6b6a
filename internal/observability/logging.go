// Package observability provides structured logging and trace export for the game server.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/config"
)

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.MessageKey = "msg"

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// ForAction returns a child logger annotated with the identifiers of one player action.
//
// Postcondition: Returns a non-nil logger; empty identifiers are omitted.
func ForAction(logger *zap.Logger, campaignID, characterID, actionID string) *zap.Logger {
	fields := make([]zap.Field, 0, 3)
	if campaignID != "" {
		fields = append(fields, zap.String("campaign_id", campaignID))
	}
	if characterID != "" {
		fields = append(fields, zap.String("character_id", characterID))
	}
	if actionID != "" {
		fields = append(fields, zap.String("action_id", actionID))
	}
	return logger.With(fields...)
}
