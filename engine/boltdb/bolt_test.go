package boltdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lotusdblabs/kvbench/engine"
	"github.com/lotusdblabs/kvbench/engine/enginetest"
)

func TestEngine(t *testing.T) {
	enginetest.Run(t, New())
}

func TestOpenCreatesDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance")
	db, err := New().Open(path, enginetest.Config(engine.Durable, engine.MemoryMapped))
	require.NoError(t, err)
	defer db.Close()

	info, err := os.Stat(filepath.Join(path, DataFileName))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestAllocSizeFollowsGrowthStep(t *testing.T) {
	cfg := enginetest.Config(engine.SafeNoSync, engine.Unmapped)
	cfg.Geometry.GrowthStep = 2 * engine.MiB
	db, err := New().Open(t.TempDir(), cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 2<<20, db.(*DB).db.AllocSize)
	assert.True(t, db.(*DB).db.NoSync)
}

func TestUnmappedWarns(t *testing.T) {
	for _, m := range []engine.MappingMode{engine.MemoryMapped, engine.Unmapped} {
		t.Run(m.String(), func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			cfg := enginetest.Config(engine.SafeNoSync, m)
			cfg.Logger = zap.New(core)
			db, err := New().Open(t.TempDir(), cfg)
			require.NoError(t, err)
			defer db.Close()

			assert.Equal(t, m == engine.Unmapped, logs.Len() == 1)
		})
	}
}
