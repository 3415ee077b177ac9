package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Переменные окружения логгера.
const (
	// EnvLogLevel — DEBUG, INFO, WARN или ERROR (по умолчанию INFO).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogFormat — json (по умолчанию) или text.
	EnvLogFormat = "LOG_FORMAT"
)

// SetupLogger создаёт логгер по LOG_LEVEL и LOG_FORMAT, пишет в stdout
// и делает его логгером по умолчанию.
//
// Логи consumer'а и запущенных анализаторов идут в один stdout,
// поэтому формат по умолчанию — JSON.
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stdout, os.Getenv(EnvLogLevel), os.Getenv(EnvLogFormat))
	slog.SetDefault(logger)
	return logger
}

// NewLogger создаёт логгер с заданными уровнем и форматом.
// Неизвестный уровень — INFO, неизвестный формат — JSON.
// На уровне DEBUG в записи добавляется место вызова.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type loggerKey struct{}

// WithLogger кладёт логгер в контекст обработки сообщения.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext достаёт логгер из контекста, иначе slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithAnalysisID возвращает логгер с добавленным analysis_id.
func WithAnalysisID(logger *slog.Logger, analysisID string) *slog.Logger {
	return logger.With("analysis_id", analysisID)
}

// WithFileHash возвращает логгер с добавленным file_hash.
func WithFileHash(logger *slog.Logger, fileHash string) *slog.Logger {
	return logger.With("file_hash", fileHash)
}
