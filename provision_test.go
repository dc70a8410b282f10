package kvbench

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotusdblabs/kvbench/engine"
	"github.com/lotusdblabs/kvbench/engine/boltdb"
	"github.com/lotusdblabs/kvbench/engine/memdb"
)

func TestProvisionCreatesTables(t *testing.T) {
	for _, layout := range []Layout{PlainKV, DuplicateKey} {
		t.Run(layout.String(), func(t *testing.T) {
			opts := testOptions(t)
			inst := provision(t, boltdb.New(), opts, StorageConfiguration{Layout: layout})

			for _, name := range []string{SmallTable, LargeTable} {
				tb, err := inst.DB.Table(name)
				require.NoError(t, err)
				assert.Equal(t, layout == DuplicateKey, tb.Flags.Has(engine.DupSort|engine.DupFixed))
			}
			assert.Equal(t, SmallTable, inst.Small.Name)
			assert.Equal(t, LargeTable, inst.Large.Name)
		})
	}
}

func TestProvisionStartsEmpty(t *testing.T) {
	opts := testOptions(t)
	cfg := StorageConfiguration{Durability: engine.SafeNoSync}
	p := NewProvisioner(boltdb.New(), opts, nil)

	inst, err := p.Provision(opts.InstancePath(), cfg)
	require.NoError(t, err)
	w := Generate(opts.Small, NewSource(1))
	_, err = NewExecutor(opts.BatchSize, nil, nil).WritePlain(context.Background(), inst.DB, inst.Small, w)
	require.NoError(t, err)
	require.NoError(t, inst.Close())
	stray := filepath.Join(opts.InstancePath(), "stray")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o644))

	inst, err = p.Provision(opts.InstancePath(), cfg)
	require.NoError(t, err)
	defer inst.Close()
	assert.NoFileExists(t, stray)

	tx, err := inst.DB.BeginRead()
	require.NoError(t, err)
	defer tx.Discard()
	for i := 0; i < w.Len(); i += 97 {
		_, ok, err := tx.Get(inst.Small, w.Key(i))
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestProvisionRejectsSmallGeometry(t *testing.T) {
	opts := testOptions(t)
	opts.Large.Count = 2000
	opts.Geometry = engine.Geometry{MaxSize: engine.MiB, GrowthStep: engine.MiB}

	_, err := NewProvisioner(memdb.New(), opts, nil).Provision(opts.InstancePath(), StorageConfiguration{})
	assert.ErrorIs(t, err, ErrProvision)
	assert.ErrorIs(t, err, engine.ErrInvalidGeometry)
}

func TestProvisionRejectsTableLimit(t *testing.T) {
	opts := testOptions(t)
	opts.MaxTables = 1
	_, err := NewProvisioner(memdb.New(), opts, nil).Provision(opts.InstancePath(), StorageConfiguration{})
	assert.ErrorIs(t, err, ErrProvision)
}

func TestInstanceSize(t *testing.T) {
	opts := testOptions(t)
	inst := provision(t, boltdb.New(), opts, StorageConfiguration{})
	require.NoError(t, inst.Close())
	require.NoError(t, inst.Close())

	size, err := inst.Size()
	require.NoError(t, err)
	assert.Greater(t, size, uint64(0))
}

func TestLayoutText(t *testing.T) {
	for _, l := range []Layout{PlainKV, DuplicateKey} {
		b, err := l.MarshalText()
		require.NoError(t, err)
		var got Layout
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, l, got)
	}
	var l Layout
	assert.ErrorIs(t, l.UnmarshalText([]byte("Columnar")), engine.ErrUnknownMode)
	assert.Equal(t, "DuplicateKey | Durable | Unmapped",
		StorageConfiguration{Layout: DuplicateKey, Mapping: engine.Unmapped}.String())
}
