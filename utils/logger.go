package utils

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process logger. It is a no-op until InitLogger runs so packages can log in tests.
var Log = zap.NewNop()

// InitLogger builds a JSON logger when production is set, a coloured console logger otherwise.
// level is one of debug, info, warn, error.
func InitLogger(level string, production bool) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", level, err)
	}

	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("init zap logger: %w", err)
	}
	Log = logger
	Log.Info("logger initialized", zap.String("level", zapLevel.String()), zap.Bool("production", production))
	return nil
}

// SyncLogger flushes buffered entries; call before exit.
func SyncLogger() {
	_ = Log.Sync()
}
