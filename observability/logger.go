// Package observability builds the logger and the run metrics shared by the
// umep tools.
package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger returns a development logger when debug is set and a production
// logger otherwise. A non-empty level ("debug", "info", "warn", "error")
// overrides the default level of either.
func NewLogger(debug bool, level string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("observability: log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}
	return zapLogger.Sugar(), nil
}
