package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// ErrorObject is attached to ERROR lines only.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack,omitempty"`
}

// Entry is the single-line JSON format written to stdout.
type Entry struct {
	Timestamp string       `json:"timestamp"`            // ISO 8601, UTC
	Level     string       `json:"level"`                // DEBUG | INFO | WARN | ERROR
	Service   string       `json:"service"`              // e.g. "driver-agent"
	Action    string       `json:"action"`               // event name, e.g. "order_accepted"
	Message   string       `json:"message"`              // human-readable description
	Hostname  string       `json:"hostname"`             //
	RequestID string       `json:"request_id,omitempty"` // correlation ID for tracing
	OrderID   string       `json:"order_id,omitempty"`   // order identifier (when applicable)
	Details   any          `json:"details,omitempty"`    // extra fields (map or struct)
	Error     *ErrorObject `json:"error,omitempty"`      //
}

// Logger writes structured single-line JSON entries to stdout.
type Logger struct {
	service  string
	hostname string
	mu       sync.Mutex
}

// New creates a structured logger for the given service name.
func New(service string) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}
	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}
	return &Logger{service: service, hostname: hn}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "DEBUG", action, msg, details))
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "INFO", action, msg, details))
}

// Warn writes a WARN line. Used for silent-degradation paths (best-effort
// emits while disconnected, push registration unavailable).
func (l *Logger) Warn(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "WARN", action, msg, details))
}

// Error writes an ERROR line and attaches the error with a stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	e := l.entry(ctx, "ERROR", action, msg, details)
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	e.Error = &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}
	l.emit(e)
}

func (l *Logger) entry(ctx context.Context, level, action, msg string, details any) Entry {
	action = strings.TrimSpace(action)
	if action == "" {
		action = "unspecified"
	}
	return Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Service:   l.service,
		Action:    action,
		Message:   strings.TrimSpace(msg),
		Hostname:  l.hostname,
		RequestID: RequestID(ctx),
		OrderID:   OrderID(ctx),
		Details:   details,
	}
}

// emit marshals and prints a single JSON line to stdout.
func (l *Logger) emit(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(e)
	if err == nil {
		fmt.Println(string(b))
		return
	}

	// retry once without Details (the usual source of marshal failures)
	e.Details = nil
	if b, err2 := json.Marshal(e); err2 == nil {
		fmt.Println(string(b))
		return
	}

	// last resort; keep something on stderr rather than losing the event
	fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
}

// ----- Context wiring -----

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "dryjets_request_id"
	ctxKeyOrderID   ctxKey = "dryjets_order_id"
)

// WithRequestID returns a context carrying request_id.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithOrderID returns a context carrying order_id.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	if strings.TrimSpace(orderID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyOrderID, orderID)
}

// RequestID extracts request_id from ctx (empty when absent).
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

// OrderID extracts order_id from ctx (empty when absent).
func OrderID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyOrderID).(string); ok {
		return s
	}
	return ""
}
