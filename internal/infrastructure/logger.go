package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
)

var (
	globalLogger     *slog.Logger
	globalLoggerOnce sync.Once

	logFileMu     sync.Mutex
	globalLogFile *os.File
)

// InitializeLogger builds the process logger from cfg and installs it as
// the slog default. Only the first call has any effect.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	globalLoggerOnce.Do(func() {
		globalLogger, err = NewLogger(cfg)
		if globalLogger != nil {
			slog.SetDefault(globalLogger)
		}
	})
	return globalLogger, err
}

// GetLogger returns the process logger, or slog.Default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// NewLogger builds a JSON logger for cfg without touching global state.
// Output "file" and "both" append to cfg.FilePath.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return NewLoggerWithWriter(os.Stdout, cfg.Level), nil
	}

	file, err := openLogFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	setLogFile(file)

	var w io.Writer = file
	if output == "both" {
		w = io.MultiWriter(os.Stdout, file)
	}
	return NewLoggerWithWriter(w, cfg.Level), nil
}

// NewLoggerWithWriter builds a JSON logger writing to w.
func NewLoggerWithWriter(w io.Writer, level string) *slog.Logger {
	lvl := parseLogLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: lvl == slog.LevelDebug,
		Level:     lvl,
	})
	return slog.New(&contextHandler{Handler: handler})
}

// contextHandler copies the trace id and offering scope stored in the
// record's context onto the record.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	if scope, ok := offeringFrom(ctx); ok {
		r.AddAttrs(slog.String("offering_id", scope.id), slog.String("exchange", scope.exchange))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

// parseLogLevel accepts slog's level names plus "warning". Anything else
// is INFO.
func parseLogLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// CloseLogFile closes the log file opened by NewLogger, if any.
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if globalLogFile == nil {
		return nil
	}
	err := globalLogFile.Close()
	globalLogFile = nil
	return err
}

// ResetLoggerForTesting forgets the process logger so the next
// InitializeLogger call builds a new one.
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	globalLogger = nil
	globalLoggerOnce = sync.Once{}
}

func setLogFile(f *os.File) {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if globalLogFile != nil {
		_ = globalLogFile.Close()
	}
	globalLogFile = f
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
