package chronoquest

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// DebugLogger traces backend traffic and owns the slog logger used by the
// library. When disabled, every method is a no-op and Logger discards.
type DebugLogger struct {
	mu      sync.Mutex
	enabled bool
	writer  io.Writer
	logger  *slog.Logger
}

// NewDebugLogger creates a debug logger.
// If logPath is empty, logs go to stderr.
func NewDebugLogger(enabled bool, logPath string) (*DebugLogger, error) {
	var writer io.Writer = os.Stderr

	if enabled && logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		writer = f
	}

	l := &DebugLogger{enabled: enabled, writer: writer}
	if enabled {
		l.logger = slog.New(slog.NewTextHandler(&lockedWriter{l: l}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l, nil
}

type lockedWriter struct{ l *DebugLogger }

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	return w.l.writer.Write(p)
}

// Logger returns the structured logger backed by this debug logger.
func (l *DebugLogger) Logger() *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.logger
}

// Close closes the debug logger if it's writing to a file.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.writer.(io.Closer); ok && l.writer != os.Stderr {
		return closer.Close()
	}
	return nil
}

// LogRequest logs an outgoing HTTP request.
func (l *DebugLogger) LogRequest(method, url string, body []byte) {
	if l == nil || !l.enabled {
		return
	}
	attrs := []any{"method", method, "url", url}
	if len(body) > 0 {
		attrs = append(attrs, "body", truncateForLog(string(body), 2000))
	}
	l.logger.Debug("request", attrs...)
}

// LogResponse logs an HTTP response.
func (l *DebugLogger) LogResponse(statusCode int, status string, body []byte) {
	if l == nil || !l.enabled {
		return
	}
	attrs := []any{"status_code", statusCode, "status", status}
	if len(body) > 0 {
		attrs = append(attrs, "body", truncateForLog(string(body), 4000))
	}
	l.logger.Debug("response", attrs...)
}

// LogError logs an error with full details.
func (l *DebugLogger) LogError(operation string, err error) {
	if l == nil || !l.enabled {
		return
	}
	l.logger.Debug("error", "op", operation, "err", err)
}

// LogSync logs drain details.
func (l *DebugLogger) LogSync(operation string, details string) {
	if l == nil || !l.enabled {
		return
	}
	l.logger.Debug("sync", "op", operation, "details", details)
}

func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}
