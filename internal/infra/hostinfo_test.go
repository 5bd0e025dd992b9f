package infra

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectHostStats(t *testing.T) {
	stats, err := CollectHostStats()
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, os.Getpid(), stats.PID)
	assert.Greater(t, stats.RSSBytes, uint64(0), "the test process has resident memory")
	assert.GreaterOrEqual(t, stats.UptimeSec, int64(0))
}
