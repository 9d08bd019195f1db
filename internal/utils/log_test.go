package utils

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiLogHandler_FansOutByLevel(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("round", "r1")

	logger.Debug("planned", "files", 3)
	logger.Warn("download failed", "name", "a.bundle")

	assert.Contains(t, debugBuf.String(), "planned")
	assert.Contains(t, debugBuf.String(), "download failed")
	assert.Contains(t, debugBuf.String(), "round=r1")
	assert.NotContains(t, warnBuf.String(), "planned")
	assert.Contains(t, warnBuf.String(), "name=a.bundle")
}

func TestLogInterceptor_NumbersLines(t *testing.T) {
	var out bytes.Buffer
	li := NewLogInterceptor(&out)

	n, err := li.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.NotContains(t, out.String(), "sec", "partial line is held back")

	_, err = li.Write([]byte("ond\ntail"))
	require.NoError(t, err)
	require.NoError(t, li.Close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "line=1 "))
	assert.True(t, strings.HasSuffix(lines[0], " first"))
	assert.True(t, strings.HasSuffix(lines[1], " second"))
	assert.True(t, strings.HasPrefix(lines[2], "line=3 "))
	assert.True(t, strings.HasSuffix(lines[2], " tail"))
}
