// Package failurelog appends generation failures to an operator-facing log
// file, one JSON line per failure, including the stack of the recording
// goroutine.
package failurelog

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kalambet/uigen/internal/pipeline"
)

// Recorder writes failures to a file. The zero value is not usable; call Open.
type Recorder struct {
	logger *zap.Logger
	path   string
}

// Open creates (or appends to) the log file at path. Write errors are
// reported on stderr by zap and never surface to callers of Record.
func Open(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("opening failure log %s: %w", path, err)
	}
	return &Recorder{logger: logger, path: path}, nil
}

// Nop returns a Recorder that discards everything.
func Nop() *Recorder {
	return &Recorder{logger: zap.NewNop()}
}

// Path returns the file the recorder appends to ("" for Nop).
func (r *Recorder) Path() string {
	return r.path
}

// Record appends err with its stage and the current stack.
func (r *Recorder) Record(err error) {
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("error", err.Error()),
		zap.StackSkip("stacktrace", 1),
	}
	if stage := pipeline.FailedStage(err); stage != "" {
		fields = append(fields, zap.String("stage", string(stage)))
	}
	r.logger.Error("generation failed", fields...)
}

// Close flushes buffered entries.
func (r *Recorder) Close() error {
	return r.logger.Sync()
}
