package log

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLog_FormatsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	Info(CatHTTP, "request", "method", "GET", "status", 200)

	line := buf.String()
	require.Contains(t, line, "[INFO] [http] request method=GET status=200")
	require.True(t, line[len(line)-1] == '\n')
}

func TestLog_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	Warn(CatResource, "odd", "orphan")

	require.Contains(t, buf.String(), "orphan=<missing>")
}

func TestLog_MinLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelWarn)

	Debug(CatHTTP, "hidden")
	Info(CatHTTP, "hidden")
	Error(CatHTTP, "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	SetMinLevel(LevelDebug)
	Debug(CatHTTP, "now visible")
	require.Contains(t, buf.String(), "now visible")
}

func TestLog_Disabled(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	SetEnabled(false)
	Error(CatHTTP, "dropped")
	SetEnabled(true)

	require.Empty(t, buf.String())
}

func TestErrorErr(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	ErrorErr(CatConfig, "failed", errors.New("boom"), "key", "v")
	ErrorErr(CatConfig, "failed nil", nil)

	require.Contains(t, buf.String(), "key=v error=boom")
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statesync.log")

	cleanup, err := Init(path, LevelInfo)
	require.NoError(t, err)

	Info(CatConfig, "to file")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "to file")
}

func TestSubscribe_ReceivesEntries(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Subscribe(ctx)
	require.NotNil(t, ch)

	Info(CatCache, "published")

	select {
	case event := <-ch:
		require.Contains(t, event.Payload, "published")
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for log event")
	}
}
