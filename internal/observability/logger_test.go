package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwenc/internal/config"
)

func jsonLogger(buf *bytes.Buffer, level string) *slog.Logger {
	return NewLoggerWithWriter(config.LoggingConfig{Level: level, Format: "json"}, buf)
}

func TestNewLogger_Formats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		jsonLogger(&buf, "info").Info("probing device", slog.String("driver", "sim"))

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "probing device", rec["msg"])
		assert.Equal(t, "sim", rec["driver"])
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
		logger.Info("probing device", slog.String("driver", "sim"))

		assert.Contains(t, buf.String(), "probing device")
		assert.Contains(t, buf.String(), "driver=sim")
	})
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	emit := func(level string, at slog.Level) string {
		var buf bytes.Buffer
		jsonLogger(&buf, level).Log(context.Background(), at, "x")
		return buf.String()
	}

	assert.NotEmpty(t, emit("debug", slog.LevelDebug))
	assert.NotEmpty(t, emit("info", slog.LevelInfo))
	assert.NotEmpty(t, emit("warn", slog.LevelWarn))
	assert.NotEmpty(t, emit("error", slog.LevelError))

	assert.Empty(t, emit("info", slog.LevelDebug))
	assert.Empty(t, emit("warn", slog.LevelInfo))
	assert.Empty(t, emit("error", slog.LevelWarn))
}

func TestNewLogger_CustomTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		TimeFormat: "2006-01-02",
	}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Info("test")

	today := time.Now().Format("2006-01-02")
	assert.Contains(t, buf.String(), today)
}

func TestNewLogger_RedactsByteSlices(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")
	logger.Info("frame submitted", slog.Any("payload", []byte("raw-frame-bytes")))

	output := buf.String()
	assert.Contains(t, output, "frame submitted")
	assert.NotContains(t, output, "raw-frame-bytes")
}

func TestWithApp(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	WithApp(logger, "hwenc").Info("test")

	assert.Contains(t, buf.String(), `"app":"hwenc"`)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	WithComponent(logger, "prober").Info("test")

	assert.Contains(t, buf.String(), `"component":"prober"`)
}

func TestWithDevice(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	WithDevice(logger, "sim0").Info("test")

	assert.Contains(t, buf.String(), `"device_id":"sim0"`)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	WithError(logger, errors.New("something went wrong")).Info("test")

	assert.Contains(t, buf.String(), `"error":"something went wrong"`)
}

func TestWithError_Nil(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	WithError(logger, nil).Info("test")

	assert.NotContains(t, buf.String(), `"error"`)
}

func TestContextWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	ctx := ContextWithLogger(context.Background(), logger)
	LoggerFromContext(ctx).Info("from context")

	assert.Contains(t, buf.String(), "from context")
}

func TestLoggerFromContext_Default(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	assert.NotNil(t, logger)
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "debug")

	done := TimedOperation(context.Background(), logger, "probe_device")
	done()

	output := buf.String()
	assert.Contains(t, output, "operation started")
	assert.Contains(t, output, "operation completed")
	assert.Contains(t, output, "probe_device")
	assert.Equal(t, 2, strings.Count(output, "\n"))
}
