// Package logger builds the zap logger. The TUI owns the terminal, so logs
// go to a daily rotated file rather than stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	fileName = "wizard"
	maxAge   = 7 * 24 * time.Hour
)

type Config struct {
	Level string
	Dev   bool
	Dir   string // empty disables file output
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init builds a logger writing JSON lines to Dir. The returned close func
// flushes and releases the file.
func Init(cfg Config) (*zap.Logger, func(), error) {
	if cfg.Dir == "" {
		return zap.NewNop(), func() {}, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("logger: create %s: %w", cfg.Dir, err)
	}
	rl, err := rotatelogs.New(
		filepath.Join(cfg.Dir, fileName+".%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(cfg.Dir, fileName+".log")),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open rotating file: %w", err)
	}
	lg := New(cfg, rl)
	return lg, func() {
		_ = lg.Sync()
		_ = rl.Close()
	}, nil
}

// New builds a logger that writes to w.
func New(cfg Config, w io.Writer) *zap.Logger {
	lvl := cfg.Level
	if lvl == "" && cfg.Dev {
		lvl = "debug"
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder = zapcore.NewJSONEncoder(encoderCfg)
	if cfg.Dev {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), levelFromString(lvl))
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...)
}
