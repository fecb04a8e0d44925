// Package logging builds the process-wide structured logger: JSON to
// stderr for operators tailing the service, plus a rotating file sink so a
// long-running station doesn't fill a disk.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where file logs land and how they rotate.
type Config struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Debug      bool
}

// DefaultConfig returns sane rotation defaults for a station running
// unattended for long stretches.
func DefaultConfig(filePath string) Config {
	return Config{
		FilePath:   filePath,
		MaxSizeMB:  64,
		MaxBackups: 5,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// New builds a zap.Logger that writes JSON to both stderr and a rotating
// file. Stderr is always at least info level; file level follows
// cfg.Debug.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), zapcore.InfoLevel),
	}

	if cfg.FilePath != "" {
		hook := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(hook), level))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller()), nil
}
