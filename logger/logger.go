// Package logger builds the zap logger the server logs through.
package logger

import (
	"github.com/panjf2000/gnet/v2/pkg/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel converts a level name such as "debug" or "warn".
func ParseLevel(text string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(text)); err != nil {
		return lvl, errors.Wrapf(err, "log level %q", text)
	}
	return lvl, nil
}

// New returns a logger at level together with its flush function. With file
// set, output goes to that file with rotation; otherwise JSON to stderr.
func New(level, file string) (logging.Logger, func() error, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	if file != "" {
		l, flush, err := logging.CreateLoggerAsLocalFile(file, lvl)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "create log file %s", file)
		}
		return l, flush, nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]interface{}{
		"service": "uringhttp",
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "build logger")
	}
	return l.Sugar(), l.Sync, nil
}
