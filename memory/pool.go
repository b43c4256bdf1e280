// Package memory implements the process-wide dynamic-memory pool
// (spec.md §5): a set of size-bucketed arenas, each a fixed number of
// fixed-size chunks, with O(1) allocate/free via a free-index stack.
//
// This replaces the source's global singleton allocator (spec.md §9)
// with an explicit *Pool value that a simulator context owns and passes
// to whoever needs to allocate — no package-level state.
package memory

import (
	"sync"

	"github.com/cg1sim/cg1sim/cgerr"
)

// BucketSpec describes one size bucket: every chunk in the bucket is
// ChunkSize bytes and there are Count of them.
type BucketSpec struct {
	ChunkSize int
	Count     int
}

// DefaultBucketSpecs mirrors the typical bucket layout named in spec.md
// §5, read as (chunk size, count) pairs: 512/1024, 1024/1024, 4096/1024.
func DefaultBucketSpecs() []BucketSpec {
	return []BucketSpec{
		{ChunkSize: 512, Count: 1024},
		{ChunkSize: 1024, Count: 1024},
		{ChunkSize: 4096, Count: 1024},
	}
}

type bucket struct {
	chunkSize int
	freeStack []int32 // stack of free chunk indices, LIFO
	inUse     []bool
}

func newBucket(spec BucketSpec) *bucket {
	free := make([]int32, spec.Count)
	for i := range free {
		// Push in descending order so chunk 0 is popped first, matching
		// the allocation order a caller would naturally expect.
		free[i] = int32(spec.Count - 1 - i)
	}
	return &bucket{
		chunkSize: spec.ChunkSize,
		freeStack: free,
		inUse:     make([]bool, spec.Count),
	}
}

// Handle identifies one allocation: which bucket it came from and which
// chunk index within that bucket.
type Handle struct {
	bucket int
	chunk  int32
}

// Pool is the dynamic-memory pool. Every bucket is sized at construction
// time; allocations route to the smallest bucket whose chunk size
// accommodates request+16 bytes of header overhead (spec.md §5). An
// out-of-bucket request (larger than every configured chunk size) is
// always fatal, matching the source's behavior.
type Pool struct {
	mu      sync.Mutex
	buckets []*bucket
}

// NewPool builds a pool from the given bucket specs, which must already
// be sorted from smallest to largest chunk size.
func NewPool(specs []BucketSpec) *Pool {
	p := &Pool{buckets: make([]*bucket, len(specs))}
	for i, s := range specs {
		p.buckets[i] = newBucket(s)
	}
	return p
}

// Alloc reserves a chunk able to hold size+16 bytes and returns a Handle
// for later Free. Returns cgerr.ErrPoolExhausted both when no bucket's
// chunk size fits the request (out-of-bucket, always fatal) and when the
// fitting bucket has no free chunk left.
func (p *Pool) Alloc(size int) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	needed := size + 16
	for bi, b := range p.buckets {
		if b.chunkSize < needed {
			continue
		}
		n := len(b.freeStack)
		if n == 0 {
			// This bucket fits the request but has nothing free; a real
			// allocator would look at the next bucket up, but spec.md §5
			// defines routing strictly by "smallest bucket whose chunk
			// size accommodates" — so a full fitting bucket is exhaustion.
			return Handle{}, cgerr.ErrPoolExhausted
		}
		idx := b.freeStack[n-1]
		b.freeStack = b.freeStack[:n-1]
		b.inUse[idx] = true
		return Handle{bucket: bi, chunk: idx}, nil
	}
	return Handle{}, cgerr.ErrPoolExhausted
}

// Free releases a previously allocated chunk back to its bucket. It is
// O(1), matching spec.md §5.
func (p *Pool) Free(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h.bucket < 0 || h.bucket >= len(p.buckets) {
		return cgerr.ErrInvalidHandle
	}
	b := p.buckets[h.bucket]
	if h.chunk < 0 || int(h.chunk) >= len(b.inUse) || !b.inUse[h.chunk] {
		return cgerr.ErrInvalidHandle
	}
	b.inUse[h.chunk] = false
	b.freeStack = append(b.freeStack, h.chunk)
	return nil
}

// BucketChunkSize returns the chunk size of the bucket the handle was
// allocated from.
func (p *Pool) BucketChunkSize(h Handle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.bucket < 0 || h.bucket >= len(p.buckets) {
		return 0
	}
	return p.buckets[h.bucket].chunkSize
}

// Stats reports occupancy for diagnostics and tests.
type Stats struct {
	ChunkSize int
	InUse     int
	Capacity  int
}

// BucketStats returns per-bucket occupancy in the order the pool was
// constructed with.
func (p *Pool) BucketStats() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Stats, len(p.buckets))
	for i, b := range p.buckets {
		out[i] = Stats{
			ChunkSize: b.chunkSize,
			InUse:     len(b.inUse) - len(b.freeStack),
			Capacity:  len(b.inUse),
		}
	}
	return out
}
