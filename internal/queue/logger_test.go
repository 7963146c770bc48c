package queue_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-promo/internal/queue"
)

func TestLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := queue.Logger{L: zerolog.New(&buf)}
	l.Info("scheduler ", "started")
	l.Warn("lease lost")
	out := buf.String()
	require.Contains(t, out, `"message":"scheduler started"`)
	require.Contains(t, out, `"level":"warn"`)
	require.Equal(t, 2, strings.Count(out, "\n"))
}

func TestRetryDelayGrowsAndCaps(t *testing.T) {
	delay := queue.RetryDelay(time.Second, 10*time.Second, 0)
	require.Equal(t, time.Second, delay(0, nil, nil))
	require.Equal(t, 2*time.Second, delay(1, nil, nil))
	require.Equal(t, 8*time.Second, delay(3, nil, nil))
	require.Equal(t, 10*time.Second, delay(6, nil, nil))
}
