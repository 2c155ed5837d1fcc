// Package logging configures the process logger and the human-readable
// per-frame output.
package logging

import (
	"fmt"
	"io"

	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/sim"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewConfig is a console config with colored levels and no stacktraces.
// Logs go to stderr so stdout stays free for frame output.
func NewConfig(debug bool) zap.Config {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// New builds a named logger. It falls back to a no-op logger if the config
// cannot be built.
func New(name string, debug bool) *zap.SugaredLogger {
	logger, err := NewConfig(debug).Build()
	if err != nil {
		return NewNop()
	}
	return logger.Named(name).Sugar()
}

func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// FormatFrame renders a pose the way verbose mode prints it.
func FormatFrame(frameID uint32, p dynamo.Pose) string {
	return fmt.Sprintf("Frame  with id %d is at %s.", frameID, p)
}

// PrintSink writes one line per frame to w.
func PrintSink(w io.Writer, frameID uint32) sim.Sink {
	return sim.SinkFunc(func(f sim.Frame) error {
		_, err := fmt.Fprintln(w, FormatFrame(frameID, f.Pose))
		return err
	})
}
