// Package logging builds the zap logger shared by every restrpc component.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rest-rpc/config"
)

// EnvLevel overrides the configured log level when set.
const EnvLevel = "RESTRPC_LOG_LEVEL"

// New returns a production logger, or a development one when cfg asks for it.
func New(cfg config.Log) (*zap.Logger, error) {
	text := cfg.Level
	if env := strings.TrimSpace(os.Getenv(EnvLevel)); env != "" {
		text = env
	}
	var level zapcore.Level
	if text != "" {
		if err := level.UnmarshalText([]byte(text)); err != nil {
			return nil, fmt.Errorf("logging: level %q: %w", text, err)
		}
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}
	return logger, nil
}
