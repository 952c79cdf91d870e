package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the *zap.Logger the manager and its supervisor are
// constructed with (the Connect Loop and liveness ticker take no logger),
// following a
// HandleLoggingParams-style shape trimmed to this module's needs: no file
// sink, no Windows winfile registration.
func NewLogger(l Logger) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if l.LogLevel != "" {
		var err error
		level, err = zapcore.ParseLevel(l.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("config: parse LogLevel: %w", err)
		}
	}
	encoding := "console"
	if l.LogEncoding != "" {
		encoding = l.LogEncoding
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.Encoding = encoding
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Sampling = nil

	return cc.Build()
}
