// Package logging builds the process-wide zap logger.
package logging

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Log struct {
	Base   *zap.Logger
	Sugar  *zap.SugaredLogger
	Level  zap.AtomicLevel
	Closer func()
}

// Init builds the process logger. Unknown level strings fall back to info
// rather than failing startup. Prod gets JSON output with sampling, dev a
// console encoder.
func Init(level, env string) (*Log, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	if strings.ToLower(env) == "prod" {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stderr), lvl)
		core = zapcore.NewSamplerWithOptions(core, time.Second, defaultSampleFirst, defaultSampleThereafter)
	} else {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), lvl)
	}

	base := zap.New(core, zap.AddStacktrace(zap.ErrorLevel))
	return &Log{
		Base:   base,
		Sugar:  base.Sugar(),
		Level:  lvl,
		Closer: func() { _ = base.Sync() },
	}, nil
}

// The import passes log one line per record at debug level; sampling keeps
// a misconfigured prod deploy from flooding the collector.
const (
	defaultSampleFirst      = 100
	defaultSampleThereafter = 10
)

// Named returns a sugared logger tagged with a component name.
func (l *Log) Named(name string) *zap.SugaredLogger {
	return l.Base.Named(name).Sugar()
}

// SetLevel changes the log level at runtime. Unknown strings are rejected.
func (l *Log) SetLevel(level string) error {
	return l.Level.UnmarshalText([]byte(strings.ToLower(level)))
}
