package logger

import (
	"log/slog"
	"os"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cocreate-app/cocreate/backend/internal/config"
)

// New builds the process logger. Dev uses the std text handler; prod
// (or backend "zap") routes slog through a zap JSON core.
func New(cfg config.Logging) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	backend := cfg.Backend
	if backend == "" {
		if cfg.Env == "prod" {
			backend = "zap"
		} else {
			backend = "std"
		}
	}

	var h slog.Handler
	switch backend {
	case "zap":
		h = newZapHandler(level, cfg.AddSource)
	default:
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		})
	}

	log := slog.New(h).With("service", cfg.Service)
	slog.SetDefault(log)
	return log
}

func newZapHandler(level slog.Level, addSource bool) slog.Handler {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		toZapLevel(level),
	)

	opts := []zap.Option{}
	if addSource {
		// Skip the slog wrapper so the caller points at the call site.
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return slogzap.Option{Logger: zap.New(core, opts...)}.NewZapHandler()
}

func toZapLevel(lvl slog.Level) zapcore.Level {
	switch {
	case lvl <= slog.LevelDebug:
		return zapcore.DebugLevel
	case lvl == slog.LevelInfo:
		return zapcore.InfoLevel
	case lvl == slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
