package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Dir   string
	Level string // unrecognised levels fall back to info
	// Console also writes human-readable lines to Stderr.
	Console bool
	Stderr  io.Writer
}

func level(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zap.InfoLevel
	}
	return lvl
}

// NewLogger writes JSON logs to a rotating portwatch.log in opts.Dir. Every
// entry carries service=portwatch and the caller.
func NewLogger(opts Options) (*zap.Logger, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}
	lvl := level(opts.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "portwatch.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), file, lvl)}

	if opts.Console {
		out := opts.Stderr
		if out == nil {
			out = os.Stderr
		}
		conCfg := zap.NewDevelopmentEncoderConfig()
		conCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(conCfg), zapcore.AddSync(out), lvl))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.Fields(zap.String("service", "portwatch")),
	), nil
}
