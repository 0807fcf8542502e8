// Package logging configures the diagnostic logger. The TUI owns stdout, so
// everything goes to a file in the data directory; logging is best-effort and
// never required for correctness.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFile = "ethterm.log"

// New opens <dataDir>/ethterm.log and returns a logger writing to it.
func New(dataDir, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	file, err := os.OpenFile(filepath.Join(dataDir, logFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(file),
		parsed,
	)

	return zap.New(core), nil
}
