// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/course-ingest/internal/sanitize"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// Err returns an "error" field whose message has URLs, addresses and
// credentials redacted. Use it instead of zap.Error anywhere an error may
// carry a request URL or upstream response body.
func Err(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", sanitize.ErrorForLogging(err))
}

// Snippet truncates s to at most n bytes on a rune boundary and redacts it
// for logging diagnostics such as malformed AI responses.
func Snippet(key, s string, n int) zap.Field {
	if n > 0 && len(s) > n {
		cut := n
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return zap.String(key, sanitize.StringForLogging(s))
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
