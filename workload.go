package kvbench

import (
	"encoding/binary"
	"math/rand/v2"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Source is a seeded stream of randomness. It is not safe for concurrent use.
type Source struct {
	seed uint64
	cc   *rand.ChaCha8
	rnd  *rand.Rand
}

// NewSource returns a source seeded with seed, zero seeds from the clock.
func NewSource(seed uint64) *Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	binary.LittleEndian.PutUint64(s[8:], xxhash.Sum64(s[:8]))
	cc := rand.NewChaCha8(s)
	return &Source{seed: seed, cc: cc, rnd: rand.New(cc)}
}

// Seed returns the effective seed.
func (s *Source) Seed() uint64 { return s.seed }

// Derive returns an independent source keyed by parts. The same seed and
// parts always yield the same stream.
func (s *Source) Derive(parts ...uint64) *Source {
	buf := make([]byte, 8*(len(parts)+1))
	binary.LittleEndian.PutUint64(buf, s.seed)
	for i, p := range parts {
		binary.LittleEndian.PutUint64(buf[8*(i+1):], p)
	}
	seed := xxhash.Sum64(buf)
	if seed == 0 {
		seed = 1
	}
	return NewSource(seed)
}

func (s *Source) Read(p []byte) (int, error) { return s.cc.Read(p) }

// Shuffle is a Fisher-Yates shuffle of n elements.
func (s *Source) Shuffle(n int, swap func(i, j int)) { s.rnd.Shuffle(n, swap) }

// Workload is a fixed-shape record set kept in one arena, record i occupies
// data[i*stride : (i+1)*stride] with the key first.
type Workload struct {
	profile RecordProfile
	stride  int
	data    []byte
}

// Generate fills profile.Count records with uniform random bytes. Keys are
// not unique.
func Generate(profile RecordProfile, src *Source) *Workload {
	stride := profile.RecordSize()
	w := &Workload{
		profile: profile,
		stride:  stride,
		data:    make([]byte, stride*profile.Count),
	}
	_, _ = src.Read(w.data)
	return w
}

// GenerateDup builds the duplicate-key records of profile. Each Blob is one
// stored value and its first KeySize bytes are the lookup prefix, so the
// arena has the same shape as a plain workload.
func GenerateDup(profile RecordProfile, src *Source) *Workload {
	return Generate(profile, src)
}

func (w *Workload) Profile() RecordProfile { return w.profile }

func (w *Workload) Len() int { return w.profile.Count }

func (w *Workload) Key(i int) []byte {
	off := i * w.stride
	return w.data[off : off+w.profile.KeySize : off+w.profile.KeySize]
}

func (w *Workload) Value(i int) []byte {
	off := i*w.stride + w.profile.KeySize
	return w.data[off : off+w.profile.ValueSize : off+w.profile.ValueSize]
}

// Blob is the whole record, key followed by value.
func (w *Workload) Blob(i int) []byte {
	off := i * w.stride
	return w.data[off : off+w.stride : off+w.stride]
}

// Prefix is a view of the first n records, it shares the arena with w.
func (w *Workload) Prefix(n int) *Workload {
	n = max(0, min(n, w.Len()))
	v := *w
	v.profile.Count = n
	v.data = w.data[:n*w.stride : n*w.stride]
	return &v
}

// Clone returns an independent copy.
func (w *Workload) Clone() *Workload {
	c := *w
	c.data = make([]byte, len(w.data))
	copy(c.data, w.data)
	return &c
}

// Shuffle permutes the records in place.
func (w *Workload) Shuffle(src *Source) {
	tmp := make([]byte, w.stride)
	src.Shuffle(w.Len(), func(i, j int) {
		a, b := w.Blob(i), w.Blob(j)
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	})
}

// Digest is an order independent fingerprint of the record multiset.
func (w *Workload) Digest() uint64 {
	var sum uint64
	for i := 0; i < w.Len(); i++ {
		sum += xxhash.Sum64(w.Blob(i))
	}
	return sum
}

// PrepareReads returns a shuffled copy of w, the order a read phase looks the
// records up in.
func PrepareReads(w *Workload, src *Source) *Workload {
	reads := w.Clone()
	reads.Shuffle(src)
	return reads
}
