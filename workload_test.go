package kvbench

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestGenerateShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("every record has the profile shape", prop.ForAll(
		func(keySize, valueSize, count int, seed uint64) bool {
			p := RecordProfile{Name: "t", KeySize: keySize, ValueSize: valueSize, Count: count}
			w := Generate(p, NewSource(seed))
			if w.Len() != count {
				return false
			}
			for i := 0; i < w.Len(); i++ {
				if len(w.Key(i)) != keySize || len(w.Value(i)) != valueSize || len(w.Blob(i)) != keySize+valueSize {
					return false
				}
				if !bytes.Equal(w.Blob(i), append(append([]byte(nil), w.Key(i)...), w.Value(i)...)) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 64),
		gen.IntRange(1, 256),
		gen.IntRange(1, 300),
		gen.UInt64Range(1, 1<<62),
	))

	properties.TestingRun(t)
}

func TestShuffleIsPermutation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("shuffled copy holds the same records", prop.ForAll(
		func(count int, seed uint64) bool {
			src := NewSource(seed)
			w := Generate(RecordProfile{Name: "t", KeySize: 8, ValueSize: 32, Count: count}, src)
			before := w.Digest()
			reads := PrepareReads(w, src)
			return reads.Len() == w.Len() && reads.Digest() == before && w.Digest() == before
		},
		gen.IntRange(1, 2000),
		gen.UInt64Range(1, 1<<62),
	))

	properties.TestingRun(t)
}

func TestCloneIsIndependent(t *testing.T) {
	w := Generate(RecordProfile{Name: "t", KeySize: 4, ValueSize: 4, Count: 10}, NewSource(7))
	c := w.Clone()
	orig := append([]byte(nil), w.Blob(0)...)
	c.Blob(0)[0] ^= 0xff
	assert.Equal(t, orig, w.Blob(0))
	assert.NotEqual(t, orig, c.Blob(0))
}

func TestShuffleChangesOrder(t *testing.T) {
	w := Generate(RecordProfile{Name: "t", KeySize: 8, ValueSize: 8, Count: 1000}, NewSource(3))
	reads := PrepareReads(w, NewSource(4))
	moved := 0
	for i := 0; i < w.Len(); i++ {
		if !bytes.Equal(w.Blob(i), reads.Blob(i)) {
			moved++
		}
	}
	assert.Greater(t, moved, 900)
}

func TestSourceDerive(t *testing.T) {
	a := Generate(smallProfileN(100), NewSource(9).Derive(1, 2, 3))
	b := Generate(smallProfileN(100), NewSource(9).Derive(1, 2, 3))
	c := Generate(smallProfileN(100), NewSource(9).Derive(1, 2, 4))
	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), c.Digest())

	assert.NotZero(t, NewSource(0).Seed())
	assert.Equal(t, uint64(9), NewSource(9).Seed())
}

func smallProfileN(n int) RecordProfile {
	p := SmallProfile
	p.Count = n
	return p
}

func TestKeysAreIsolatedSlices(t *testing.T) {
	w := Generate(RecordProfile{Name: "t", KeySize: 4, ValueSize: 4, Count: 2}, NewSource(1))
	next := append([]byte(nil), w.Value(0)...)
	k := append(w.Key(0), 0xaa)
	assert.Len(t, k, 5)
	assert.Equal(t, next, w.Value(0))
}

func TestPrefix(t *testing.T) {
	w := Generate(RecordProfile{Name: "t", KeySize: 4, ValueSize: 4, Count: 250}, NewSource(8))
	p := w.Prefix(200)
	assert.Equal(t, 200, p.Len())
	assert.Equal(t, 200, p.Profile().Count)
	assert.Equal(t, w.Blob(199), p.Blob(199))
	assert.Equal(t, 250, w.Len())

	reads := PrepareReads(p, NewSource(9))
	assert.Equal(t, p.Digest(), reads.Digest())
	assert.NotEqual(t, w.Digest(), reads.Digest())

	assert.Equal(t, 250, w.Prefix(300).Len())
	assert.Zero(t, w.Prefix(-1).Len())
}
