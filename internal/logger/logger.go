// Package logger builds the application's structured zap logger.
package logger

import (
	"fmt"

	"github.com/shi0417/kongfuworld-champion/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the zap logger from application config and replaces the
// globals. Development environments get console output with colored
// levels; everything else logs JSON. An unset level means info.
func New(appCfg config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if raw := appCfg.LogLevel; raw != "" {
		parsed, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", raw, err)
		}
		level = parsed
	}

	var cfg zap.Config
	if appCfg.Environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(log)
	return log, nil
}
