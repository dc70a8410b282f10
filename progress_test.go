package kvbench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTrackerFinish(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tr := StartTracker(zap.New(core), "KV Durable | MemoryMapped", 1, 100, 0)
	tr.Add(40)
	tr.Add(60)
	assert.Equal(t, int64(100), tr.Pos())

	tr.Finish()
	tr.Finish()

	entries := logs.FilterMessage("benchmark iteration finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(100), fields["pos"])
	assert.Equal(t, int64(100), fields["total"])
	assert.Equal(t, int64(1), fields["iteration"])
	assert.Equal(t, "KV Durable | MemoryMapped", fields["case"])
}

func TestTrackerTicks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tr := StartTracker(zap.New(core), "tick", 0, 10, time.Millisecond)
	tr.Add(5)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("benchmark progress").Len() > 0
	}, time.Second, time.Millisecond)
	tr.Finish()
	assert.Equal(t, 1, logs.FilterMessage("benchmark iteration finished").Len())
}

func TestNopProgress(t *testing.T) {
	var p Progress = NopProgress{}
	p.Add(10)
}
