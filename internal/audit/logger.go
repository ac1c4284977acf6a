package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// Logger writes audit events as JSON lines. Events are queued on a
// bounded channel and written by a single background goroutine; Record
// never blocks the request path.
type Logger struct {
	enabled bool
	writer  io.Writer
	closer  io.Closer
	log     observability.Logger
	metrics *Metrics

	events chan *Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Option configures the logger.
type Option func(*Logger)

// WithLogger sets the operational logger used to report write failures.
func WithLogger(log observability.Logger) Option {
	return func(l *Logger) {
		l.log = log
	}
}

// WithMetrics sets the metrics.
func WithMetrics(m *Metrics) Option {
	return func(l *Logger) {
		l.metrics = m
	}
}

// WithWriter sets the output writer, overriding the configured
// destination. Useful in tests.
func WithWriter(w io.Writer) Option {
	return func(l *Logger) {
		l.writer = w
	}
}

// NewLogger creates an audit logger from the configuration. When audit
// logging is disabled the returned logger discards all events without
// starting a goroutine or opening the output.
func NewLogger(cfg *Config, opts ...Option) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Logger{
		enabled: cfg.Enabled,
		log:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if !l.enabled {
		return l, nil
	}

	if l.metrics == nil {
		l.metrics = NewMetrics("authgate")
	}
	if l.writer == nil {
		writer, closer, err := openOutput(cfg.GetOutput())
		if err != nil {
			return nil, err
		}
		l.writer = writer
		l.closer = closer
	}

	l.events = make(chan *Event, cfg.GetBufferSize())
	l.done = make(chan struct{})
	go l.run()

	return l, nil
}

// openOutput resolves the configured destination to a writer.
func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		//nolint:gosec // G304: path comes from trusted configuration
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit log: %w", err)
		}
		return file, file, nil
	}
}

// Record queues an event for writing. Missing correlation fields are
// filled from the context. When the queue is full the event is dropped
// and counted so a slow disk cannot stall request handling.
func (l *Logger) Record(ctx context.Context, event *Event) {
	if l == nil || !l.enabled || event == nil {
		return
	}

	if event.RequestID == "" {
		event.RequestID = observability.RequestIDFromContext(ctx)
	}
	if event.TraceID == "" {
		event.TraceID = traceIDFrom(ctx)
	}

	// The read lock orders queued sends before Close closes the channel.
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.metrics.RecordDropped(event.Kind)
		return
	}

	select {
	case l.events <- event:
		l.metrics.RecordEvent(event.Kind, event.Decision)
	default:
		l.metrics.RecordDropped(event.Kind)
	}
}

// run drains the event queue until Close.
func (l *Logger) run() {
	defer close(l.done)
	for event := range l.events {
		l.write(event)
	}
}

// write marshals one event and appends it as a single line.
func (l *Logger) write(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		l.log.Error("failed to marshal audit event", observability.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := l.writer.Write(data); err != nil {
		l.log.Error("failed to write audit event", observability.Error(err))
	}
}

// Close drains queued events and closes the output. Events recorded
// after Close are dropped.
func (l *Logger) Close() error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.events)
	<-l.done

	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// traceIDFrom extracts the trace ID from the active span, falling back
// to the request correlation value. gRPC interceptors carry a span but
// not the HTTP middleware's context values.
func traceIDFrom(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return observability.TraceIDFromContext(ctx)
}
