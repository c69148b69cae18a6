package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLevel returns the configured level, defaulting to info.
func (l LogConfig) ZapLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NewLogger builds a zap logger from the log settings.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	var cfg zap.Config
	if l.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(l.ZapLevel())
	return cfg.Build()
}
