package dynobj

import (
	"sync"

	"github.com/cg1sim/cg1sim/cgerr"
)

// Index is the slot component of a Handle.
type Index = uint32

// Generation counts how many times a slot has been recycled; it
// invalidates stale handles after reuse (spec.md §9: "a separate
// reference counter or generational index governs reclamation").
type Generation = uint32

// Handle is a stable, copyable reference to an arena-resident object.
// Stages pass Handle values through signals instead of pointers.
type Handle struct {
	index Index
	gen   Generation
}

// IsZero reports whether h is the zero Handle (never returned by Alloc).
func (h Handle) IsZero() bool { return h.index == 0 && h.gen == 0 }

type slot[T any] struct {
	value    T
	gen      Generation
	refCount int32
	occupied bool
}

// Arena is a generational handle arena with reference counting. It is the
// reclamation strategy spec.md §9 asks for in place of the source's
// intrusive, cyclic refcount fields: SetupTriangle (and similarly
// lifetime-tricky objects) are stored by value in arena slots; the
// refcount lives in the slot, not in the payload.
//
// Arena is safe for concurrent use; within one simulated cycle the
// pipeline is single-threaded (spec.md §5), but the recursive-descent
// rasterizer's tile evaluators and the generic ROP's parallel cache
// lookups still benefit from not having to reason about it.
type Arena[T any] struct {
	mu       sync.Mutex
	slots    []*slot[T]
	freeList []Index
}

// NewArena creates an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{
		// Index 0 is never allocated so the zero Handle stays invalid.
		slots: []*slot[T]{nil},
	}
}

// Alloc stores v in a fresh (or recycled) slot with refcount 1 — the
// caller's own reference — and returns its Handle.
func (a *Arena[T]) Alloc(v T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		s := a.slots[idx]
		s.value = v
		s.gen++
		s.refCount = 1
		s.occupied = true
		return Handle{index: idx, gen: s.gen}
	}

	idx := Index(len(a.slots))
	a.slots = append(a.slots, &slot[T]{value: v, gen: 1, refCount: 1, occupied: true})
	return Handle{index: idx, gen: 1}
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], error) {
	if h.IsZero() {
		return nil, cgerr.ErrInvalidHandle
	}
	if int(h.index) >= len(a.slots) {
		return nil, cgerr.ErrHandleNotFound
	}
	s := a.slots[h.index]
	if s == nil || !s.occupied {
		return nil, cgerr.ErrHandleNotFound
	}
	if s.gen != h.gen {
		return nil, cgerr.ErrHandleRecycled
	}
	return s, nil
}

// Get returns a copy of the value stored at h.
func (a *Arena[T]) Get(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, err := a.lookup(h)
	if err != nil {
		return zero, err
	}
	return s.value, nil
}

// Mutate applies fn to the value stored at h in place.
func (a *Arena[T]) Mutate(h Handle, fn func(*T)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(h)
	if err != nil {
		return err
	}
	fn(&s.value)
	return nil
}

// AddRef increments the reference count of the object at h. Every stage,
// Tile, and Fragment that retains a Handle across more than one cycle
// must call AddRef when it acquires the handle and Release when it is
// done (spec.md §3 lifecycle: "reference-acquired by the rasterizer, by
// every Tile... and by every Fragment...").
func (a *Arena[T]) AddRef(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(h)
	if err != nil {
		return err
	}
	s.refCount++
	return nil
}

// Release decrements the reference count of the object at h, freeing the
// slot for reuse when it reaches zero. Returns whether this call was the
// one that destroyed the object.
func (a *Arena[T]) Release(h Handle) (destroyed bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, lookupErr := a.lookup(h)
	if lookupErr != nil {
		return false, lookupErr
	}
	s.refCount--
	if s.refCount < 0 {
		// A release without a matching acquire is an invariant violation,
		// not a recoverable condition (spec.md §8: refcount >= 0 always).
		s.refCount = 0
		return false, cgerr.ErrInvalidHandle
	}
	if s.refCount == 0 {
		s.occupied = false
		var zero T
		s.value = zero
		a.freeList = append(a.freeList, h.index)
		return true, nil
	}
	return false, nil
}

// RefCount returns the current reference count of the object at h.
func (a *Arena[T]) RefCount(h Handle) (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(h)
	if err != nil {
		return 0, err
	}
	return s.refCount, nil
}

// Live returns the number of currently occupied slots, for invariant
// checks and tests.
func (a *Arena[T]) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, s := range a.slots {
		if s != nil && s.occupied {
			n++
		}
	}
	return n
}
