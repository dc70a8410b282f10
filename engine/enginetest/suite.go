// Package enginetest holds the behavior every engine backend must share.
package enginetest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lotusdblabs/kvbench/engine"
)

// Config returns a small instance configuration suitable for tests.
func Config(d engine.Durability, m engine.MappingMode) engine.Config {
	return engine.Config{
		Durability: d,
		Mapping:    m,
		MaxTables:  engine.MinMaxTables,
		MaxReaders: engine.MinMaxReaders,
		Geometry:   engine.Geometry{MaxSize: 64 * engine.MiB, GrowthStep: engine.MiB},
		Logger:     zap.NewNop(),
	}
}

func open(t *testing.T, e engine.Engine, cfg engine.Config) engine.DB {
	t.Helper()
	db, err := e.Open(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTables(t *testing.T, db engine.DB) (plain, dup *engine.Table) {
	t.Helper()
	tx, err := db.BeginWrite()
	require.NoError(t, err)
	plain, err = tx.CreateTable("plain", 0)
	require.NoError(t, err)
	dup, err = tx.CreateTable("dup", engine.DupSort|engine.DupFixed)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return plain, dup
}

// Run exercises e against the engine contract.
func Run(t *testing.T, e engine.Engine) {
	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := Config(engine.Durable, engine.MemoryMapped)
		cfg.MaxReaders = 1
		_, err := e.Open(t.TempDir(), cfg)
		assert.ErrorIs(t, err, engine.ErrInvalidGeometry)
	})

	t.Run("tables", func(t *testing.T) { testTables(t, e) })
	t.Run("too many tables", func(t *testing.T) { testTooManyTables(t, e) })
	t.Run("abort", func(t *testing.T) { testAbort(t, e) })
	t.Run("read isolation", func(t *testing.T) { testReadIsolation(t, e) })
	t.Run("reader slots", func(t *testing.T) { testReaderSlots(t, e) })
	t.Run("layout mismatch", func(t *testing.T) { testLayoutMismatch(t, e) })
	t.Run("dup sort", func(t *testing.T) { testDupSort(t, e) })
	t.Run("dup fixed", func(t *testing.T) { testDupFixed(t, e) })
	t.Run("closed txn", func(t *testing.T) { testClosedTxn(t, e) })

	for _, d := range []engine.Durability{engine.Durable, engine.SafeNoSync, engine.UtterlyNoSync} {
		for _, m := range []engine.MappingMode{engine.MemoryMapped, engine.Unmapped} {
			d, m := d, m
			t.Run(fmt.Sprintf("put get %s %s", d, m), func(t *testing.T) {
				testPutGet(t, e, Config(d, m))
			})
		}
	}
}

func testTables(t *testing.T, e engine.Engine) {
	db := open(t, e, Config(engine.Durable, engine.MemoryMapped))

	_, err := db.Table("plain")
	assert.ErrorIs(t, err, engine.ErrTableNotFound)

	plain, dup := createTables(t, db)
	assert.False(t, plain.IsDupSort())
	assert.True(t, dup.IsDupSort())
	assert.NotEqual(t, plain.ID, dup.ID)

	got, err := db.Table("dup")
	require.NoError(t, err)
	assert.Same(t, dup, got)

	tx, err := db.BeginWrite()
	require.NoError(t, err)
	defer tx.Abort()
	_, err = tx.CreateTable("plain", 0)
	assert.ErrorIs(t, err, engine.ErrTableExists)
}

func testTooManyTables(t *testing.T, e engine.Engine) {
	db := open(t, e, Config(engine.Durable, engine.Unmapped))
	tx, err := db.BeginWrite()
	require.NoError(t, err)
	defer tx.Abort()
	for i := 0; i < engine.MinMaxTables; i++ {
		_, err := tx.CreateTable(fmt.Sprintf("t%02d", i), 0)
		require.NoError(t, err)
	}
	_, err = tx.CreateTable("one-too-many", 0)
	assert.ErrorIs(t, err, engine.ErrTooManyTables)
}

func testAbort(t *testing.T, e engine.Engine) {
	db := open(t, e, Config(engine.SafeNoSync, engine.MemoryMapped))
	plain, _ := createTables(t, db)

	tx, err := db.BeginWrite()
	require.NoError(t, err)
	_, err = tx.CreateTable("ghost", 0)
	require.NoError(t, err)
	require.NoError(t, tx.Put(plain, []byte("k"), []byte("v")))
	tx.Abort()
	tx.Abort()

	_, err = db.Table("ghost")
	assert.ErrorIs(t, err, engine.ErrTableNotFound)

	rtx, err := db.BeginRead()
	require.NoError(t, err)
	defer rtx.Discard()
	_, ok, err := rtx.Get(plain, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func testReadIsolation(t *testing.T, e engine.Engine) {
	db := open(t, e, Config(engine.SafeNoSync, engine.MemoryMapped))
	plain, _ := createTables(t, db)

	rtx, err := db.BeginRead()
	require.NoError(t, err)
	defer rtx.Discard()

	tx, err := db.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, tx.Put(plain, []byte("k"), []byte("v")))
	require.NoError(t, tx.Commit())

	_, ok, err := rtx.Get(plain, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok, "a read txn must not see a commit that happened after it began")

	rtx2, err := db.BeginRead()
	require.NoError(t, err)
	defer rtx2.Discard()
	v, ok, err := rtx2.Get(plain, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func testReaderSlots(t *testing.T, e engine.Engine) {
	cfg := Config(engine.UtterlyNoSync, engine.MemoryMapped)
	db := open(t, e, cfg)
	createTables(t, db)

	txns := make([]engine.Txn, 0, cfg.MaxReaders)
	for i := 0; i < cfg.MaxReaders; i++ {
		tx, err := db.BeginRead()
		require.NoError(t, err)
		txns = append(txns, tx)
	}
	_, err := db.BeginRead()
	assert.ErrorIs(t, err, engine.ErrReadersFull)

	txns[0].Discard()
	txns[0].Discard()
	tx, err := db.BeginRead()
	require.NoError(t, err)
	tx.Discard()
	for _, tx := range txns[1:] {
		tx.Discard()
	}
}

func testLayoutMismatch(t *testing.T, e engine.Engine) {
	db := open(t, e, Config(engine.Durable, engine.MemoryMapped))
	plain, dup := createTables(t, db)

	tx, err := db.BeginWrite()
	require.NoError(t, err)
	defer tx.Abort()
	assert.ErrorIs(t, tx.Put(dup, []byte("k"), []byte("v")), engine.ErrDupSort)
	_, err = tx.RWCursor(plain)
	assert.ErrorIs(t, err, engine.ErrNotDupSort)
	_, err = tx.Cursor(plain)
	assert.ErrorIs(t, err, engine.ErrNotDupSort)
	_, _, err = tx.Get(dup, []byte("k"))
	assert.ErrorIs(t, err, engine.ErrDupSort)
}

func testDupSort(t *testing.T, e engine.Engine) {
	db := open(t, e, Config(engine.Durable, engine.MemoryMapped))
	_, dup := createTables(t, db)

	blobs := [][]byte{
		[]byte("ccccdata"),
		[]byte("aaaadata"),
		[]byte("bbbbdat1"),
		[]byte("bbbbdat0"),
		[]byte("aaaadata"), // repeated blob
	}
	empty := []byte{}

	tx, err := db.BeginWrite()
	require.NoError(t, err)
	c, err := tx.RWCursor(dup)
	require.NoError(t, err)
	for _, b := range blobs {
		require.NoError(t, c.Put(empty, b))
	}
	// pending writes are visible to the writer
	v, ok, err := c.GetBoth(empty, []byte("cccc"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("ccccdata"), v)
	c.Close()
	require.NoError(t, tx.Commit())

	rtx, err := db.BeginRead()
	require.NoError(t, err)
	defer rtx.Discard()
	rc, err := rtx.Cursor(dup)
	require.NoError(t, err)
	defer rc.Close()

	for _, b := range blobs {
		v, ok, err := rc.GetBoth(empty, b[:4])
		require.NoError(t, err)
		require.True(t, ok, "blob %q", b)
		assert.True(t, bytes.HasPrefix(v, b[:4]))
	}

	// values sort by content, the smallest match wins
	v, ok, err = rc.GetBoth(empty, []byte("bbbb"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("bbbbdat0"), v)

	_, ok, err = rc.GetBoth(empty, []byte("dddd"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = rc.GetBoth([]byte("other"), []byte("aaaa"))
	require.NoError(t, err)
	assert.False(t, ok, "values of the empty key must not leak into another key")
}

func testDupFixed(t *testing.T, e engine.Engine) {
	db := open(t, e, Config(engine.SafeNoSync, engine.MemoryMapped))
	_, dup := createTables(t, db)

	tx, err := db.BeginWrite()
	require.NoError(t, err)
	defer tx.Abort()
	c, err := tx.RWCursor(dup)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put(nil, []byte("12345678")))
	assert.ErrorIs(t, c.Put(nil, []byte("123")), engine.ErrValueSize)
}

func testClosedTxn(t *testing.T, e engine.Engine) {
	db := open(t, e, Config(engine.Durable, engine.MemoryMapped))
	plain, _ := createTables(t, db)

	tx, err := db.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), engine.ErrTxnClosed)
	assert.ErrorIs(t, tx.Put(plain, []byte("k"), []byte("v")), engine.ErrTxnClosed)
	tx.Abort()

	rtx, err := db.BeginRead()
	require.NoError(t, err)
	rtx.Discard()
	_, _, err = rtx.Get(plain, []byte("k"))
	assert.ErrorIs(t, err, engine.ErrTxnClosed)
}

func testPutGet(t *testing.T, e engine.Engine, cfg engine.Config) {
	db := open(t, e, cfg)
	plain, _ := createTables(t, db)

	const n = 200
	key := func(i int) []byte { return []byte(fmt.Sprintf("key-%05d", i)) }
	value := func(i int) []byte { return bytes.Repeat([]byte{byte(i)}, 64) }

	for batch := 0; batch < n; batch += 50 {
		tx, err := db.BeginWrite()
		require.NoError(t, err)
		for i := batch; i < batch+50; i++ {
			require.NoError(t, tx.Put(plain, key(i), value(i)))
		}
		require.NoError(t, tx.Commit())
	}

	// upsert replaces the value
	tx, err := db.BeginWrite()
	require.NoError(t, err)
	require.NoError(t, tx.Put(plain, key(0), []byte("replaced")))
	require.NoError(t, tx.Commit())

	rtx, err := db.BeginRead()
	require.NoError(t, err)
	defer rtx.Discard()
	for i := 1; i < n; i++ {
		v, ok, err := rtx.Get(plain, key(i))
		require.NoError(t, err)
		require.True(t, ok, "key %d", i)
		assert.Equal(t, value(i), v)
	}
	v, ok, err := rtx.Get(plain, key(0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("replaced"), v)

	_, ok, err = rtx.Get(plain, []byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}
