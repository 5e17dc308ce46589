package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerLevels(t *testing.T) {
	l, err := NewLogger(&LoggerConfig{})
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewLogger(&LoggerConfig{Debug: true})
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSlogBridgeWritesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sl := Slog(zap.New(core))
	sl.Debug("hidden")
	sl.Info("wallet state changed", "from", "connecting", "to", "connected")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "wallet state changed", entries[0].Message)
	require.Equal(t, "connected", entries[0].ContextMap()["to"])
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}), zap.New(core))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sign", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "/sign", entries[0].ContextMap()["path"])
	require.Equal(t, int64(http.StatusConflict), entries[0].ContextMap()["status"])
}
