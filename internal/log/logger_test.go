package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/safekart/safekart/internal/errors"
)

func newBufferLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{
		Level:          level,
		Format:         FormatJSON,
		Output:         NewOutput(buf),
		ServiceName:    "safekart",
		ServiceVersion: "1.0.0",
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log line: %s", buf.String())
	return entry
}

func TestNewRespectsFormat(t *testing.T) {
	var jsonBuf, textBuf bytes.Buffer

	New(Config{Level: LevelInfo, Format: FormatJSON, Output: NewOutput(&jsonBuf)}).Info("hello")
	New(Config{Level: LevelInfo, Format: FormatText, Output: NewOutput(&textBuf)}).Info("hello")

	assert.True(t, json.Valid(jsonBuf.Bytes()), jsonBuf.String())
	assert.Contains(t, textBuf.String(), "msg=hello")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelWarn)

	logger.Debug("debug")
	logger.Info("info")
	assert.Zero(t, buf.Len(), buf.String())
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))

	logger.Warn("warn")
	assert.Contains(t, buf.String(), `"msg":"warn"`)
}

func TestServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	newBufferLogger(&buf, LevelInfo).Info("x")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "safekart", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
}

func TestRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: NewOutput(&buf),
		Redact: []string{"Phone"},
	})

	logger.With("access_token", "eyJhbGciOi").Info("signed in",
		"email", "ada@safekart.test",
		"Password", "secret1",
		"phone", "+44 20 7946 0000",
	)

	entry := decodeLine(t, &buf)
	assert.Equal(t, Redacted, entry["access_token"])
	assert.Equal(t, Redacted, entry["Password"])
	assert.Equal(t, Redacted, entry["phone"])
	assert.Equal(t, "ada@safekart.test", entry["email"])
	assert.NotContains(t, buf.String(), "secret1")
}

func TestTraceCorrelation(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo).With("op", "login")
	logger.InfoContext(ctx, "request sent")

	entry := decodeLine(t, &buf)
	assert.Equal(t, traceID.String(), entry["trace_id"])
	assert.Equal(t, spanID.String(), entry["span_id"])
	assert.Equal(t, "login", entry["op"])

	buf.Reset()
	logger.Info("no context")
	assert.NotContains(t, decodeLine(t, &buf), "trace_id")
}

func TestWithAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo).With("op", "login").WithGroup("http")

	logger.Info("request", "status", 200)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "login", entry["op"])
	group, ok := entry["http"].(map[string]any)
	require.True(t, ok, "%v", entry)
	assert.Equal(t, float64(200), group["status"])
}

type valuedErr struct{ kind string }

func (e valuedErr) Error() string { return "valued: " + e.kind }

func (e valuedErr) LogValue() slog.Value {
	return slog.GroupValue(slog.String("kind", e.kind))
}

func TestWithError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, entry map[string]any)
	}{
		{
			name: "plain error",
			err:  fmt.Errorf("boom"),
			check: func(t *testing.T, entry map[string]any) {
				assert.Equal(t, "boom", entry["error"])
			},
		},
		{
			name: "coded error",
			err:  errors.NewNotLoggedInError(),
			check: func(t *testing.T, entry map[string]any) {
				assert.Equal(t, "AUTH-001", entry["error_code"])
				assert.Contains(t, entry, "suggestions")
			},
		},
		{
			name: "wrapped coded error",
			err:  fmt.Errorf("opening store: %w", errors.NewUnknownBackendError("etcd")),
			check: func(t *testing.T, entry map[string]any) {
				assert.Equal(t, "STORE-001", entry["error_code"])
			},
		},
		{
			name: "wrapped log valuer",
			err:  fmt.Errorf("login: %w", valuedErr{kind: "timeout"}),
			check: func(t *testing.T, entry map[string]any) {
				group, ok := entry["error"].(map[string]any)
				require.True(t, ok, "%v", entry["error"])
				assert.Equal(t, "timeout", group["kind"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newBufferLogger(&buf, LevelInfo).WithError(tt.err).Info("failed")
			tt.check(t, decodeLine(t, &buf))
		})
	}
}

func TestWithErrorNil(t *testing.T) {
	logger := newBufferLogger(&bytes.Buffer{}, LevelInfo)
	assert.Same(t, logger, logger.WithError(nil))
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing to see")
	assert.NotNil(t, logger.Slog())
}
