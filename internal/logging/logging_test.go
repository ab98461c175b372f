package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "Warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "trace", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	_, err := New(WithFormat("xml"))
	assert.ErrorContains(t, err, "unsupported log format")

	_, err = New(WithOutput(nil))
	assert.ErrorContains(t, err, "output cannot be nil")
}

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    slog.Level
		wantMsgs []string
	}{
		{name: "debug", level: slog.LevelDebug, wantMsgs: []string{"d", "i", "w", "e"}},
		{name: "info", level: slog.LevelInfo, wantMsgs: []string{"i", "w", "e"}},
		{name: "error", level: slog.LevelError, wantMsgs: []string{"e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger, err := New(WithLevel(tt.level), WithOutput(&buf))
			require.NoError(t, err)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			var msgs []string
			for _, rec := range decodeLines(t, &buf) {
				msgs = append(msgs, rec["msg"].(string))
			}
			assert.Equal(t, tt.wantMsgs, msgs)
		})
	}
}

func TestNew_Attributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(WithLevel(slog.LevelDebug), WithOutput(&buf))
	require.NoError(t, err)

	logger.With("component", "api").Info("Serving", "namespace", "default")
	logger.Debug("Detail")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "info", recs[0]["level"])
	assert.Equal(t, "api", recs[0]["component"])
	assert.Equal(t, "default", recs[0]["namespace"])
	assert.Equal(t, "debug", recs[1]["level"])
}

func TestNew_TraceCorrelation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(WithOutput(&buf))
	require.NoError(t, err)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "with span")
	logger.Info("without span")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", recs[0]["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", recs[0]["span_id"])
	assert.NotContains(t, recs[1], "trace_id")
}

func TestNew_ConsoleFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(WithFormat(FormatConsole), WithOutput(&buf))
	require.NoError(t, err)

	logger.Info("Server listening", "address", ":8080")
	assert.Contains(t, buf.String(), "Server listening")
	assert.Contains(t, buf.String(), "info")
}
