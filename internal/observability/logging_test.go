package observability

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{
			name:    "default config",
			config:  DefaultLogConfig(),
			wantErr: false,
		},
		{
			name: "console format",
			config: LogConfig{
				Level:  "debug",
				Format: "console",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "stderr output",
			config: LogConfig{
				Level:  "warn",
				Format: "json",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "invalid level",
			config: LogConfig{
				Level:  "loudest",
				Format: "json",
				Output: "stdout",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
			}
		})
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "authgate.log")

	logger, err := NewLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("written to file", String("key", "value"))
	require.NoError(t, logger.Sync())

	assert.FileExists(t, path)
}

func TestZapLogger_Methods(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(LogConfig{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	require.NoError(t, err)

	// These should not panic
	logger.Debug("debug message", String("key", "value"))
	logger.Info("info message", Int("count", 42))
	logger.Warn("warn message", Bool("flag", true))
	logger.Error("error message", Strings("roles", []string{"USER"}))

	// Sync may return an error for stdout/stderr in test environments
	_ = logger.Sync()
}

func TestZapLogger_With(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	childLogger := logger.With(String("component", "authz"))

	assert.NotNil(t, childLogger)
	assert.NotEqual(t, logger, childLogger)
}

func TestZapLogger_WithContext(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	t.Run("empty context returns same logger", func(t *testing.T) {
		t.Parallel()

		got := logger.WithContext(context.Background())
		assert.Equal(t, logger, got)
	})

	t.Run("context fields produce child logger", func(t *testing.T) {
		t.Parallel()

		ctx := ContextWithRequestID(context.Background(), "req-123")
		ctx = ContextWithTraceID(ctx, "trace-456")
		ctx = ContextWithSpanID(ctx, "span-789")

		got := logger.WithContext(ctx)
		assert.NotEqual(t, logger, got)
	})
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(ctx))
	assert.Empty(t, SpanIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithTraceID(ctx, "trace-1")
	ctx = ContextWithSpanID(ctx, "span-1")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "trace-1", TraceIDFromContext(ctx))
	assert.Equal(t, "span-1", SpanIDFromContext(ctx))
}

func TestGlobalLogger(t *testing.T) {
	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	SetGlobalLogger(logger)
	assert.Equal(t, logger, GetGlobalLogger())
	assert.Equal(t, logger, L())
}

func TestGetGlobalLogger_Unset(t *testing.T) {
	SetGlobalLogger(nil)

	got := GetGlobalLogger()
	assert.NotNil(t, got)
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()

	// No output, no panic
	logger.Debug("discarded")
	logger.Info("discarded")
	logger.Warn("discarded")
	logger.Error("discarded")
	assert.NoError(t, logger.Sync())
}
