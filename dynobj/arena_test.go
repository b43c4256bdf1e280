package dynobj

import (
	"errors"
	"testing"

	"github.com/cg1sim/cg1sim/cgerr"
)

func TestArenaAllocGetRelease(t *testing.T) {
	a := NewArena[int]()
	h := a.Alloc(42)

	v, err := a.Get(h)
	if err != nil || v != 42 {
		t.Fatalf("Get() = (%d, %v), want (42, nil)", v, err)
	}

	destroyed, err := a.Release(h)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !destroyed {
		t.Fatal("expected single-ref object to be destroyed on Release")
	}

	if _, err := a.Get(h); !errors.Is(err, cgerr.ErrHandleNotFound) {
		t.Fatalf("Get() after release = %v, want ErrHandleNotFound", err)
	}
}

func TestArenaRefCounting(t *testing.T) {
	a := NewArena[string]()
	h := a.Alloc("triangle")

	if err := a.AddRef(h); err != nil {
		t.Fatalf("AddRef() error = %v", err)
	}
	if err := a.AddRef(h); err != nil {
		t.Fatalf("AddRef() error = %v", err)
	}
	count, err := a.RefCount(h)
	if err != nil || count != 3 {
		t.Fatalf("RefCount() = (%d, %v), want (3, nil)", count, err)
	}

	for i := 0; i < 2; i++ {
		destroyed, err := a.Release(h)
		if err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if destroyed {
			t.Fatalf("object destroyed too early at release %d", i)
		}
	}

	destroyed, err := a.Release(h)
	if err != nil {
		t.Fatalf("final Release() error = %v", err)
	}
	if !destroyed {
		t.Fatal("expected object to be destroyed once refcount reaches zero")
	}
}

func TestArenaGenerationInvalidatesStaleHandles(t *testing.T) {
	a := NewArena[int]()
	h1 := a.Alloc(1)
	if _, err := a.Release(h1); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	h2 := a.Alloc(2)
	if h2.index != h1.index {
		t.Fatalf("expected slot reuse: h1.index=%d h2.index=%d", h1.index, h2.index)
	}

	if _, err := a.Get(h1); !errors.Is(err, cgerr.ErrHandleRecycled) {
		t.Fatalf("Get(stale handle) = %v, want ErrHandleRecycled", err)
	}

	v, err := a.Get(h2)
	if err != nil || v != 2 {
		t.Fatalf("Get(h2) = (%d, %v), want (2, nil)", v, err)
	}
}

func TestArenaReleaseBelowZeroIsInvariantViolation(t *testing.T) {
	a := NewArena[int]()
	h := a.Alloc(7)
	if _, err := a.Release(h); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	// h is now recycled/invalid; releasing again must not panic and must
	// report an error rather than silently underflow the count.
	if _, err := a.Release(h); err == nil {
		t.Fatal("expected an error releasing an already-destroyed handle")
	}
}

func TestArenaMutate(t *testing.T) {
	type counter struct{ n int }
	a := NewArena[counter]()
	h := a.Alloc(counter{n: 1})

	if err := a.Mutate(h, func(c *counter) { c.n += 41 }); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	v, _ := a.Get(h)
	if v.n != 42 {
		t.Fatalf("after Mutate, n = %d, want 42", v.n)
	}
}

func TestArenaLiveCount(t *testing.T) {
	a := NewArena[int]()
	h1 := a.Alloc(1)
	_ = a.Alloc(2)
	_ = a.Alloc(3)

	if got := a.Live(); got != 3 {
		t.Fatalf("Live() = %d, want 3", got)
	}

	_, _ = a.Release(h1)
	if got := a.Live(); got != 2 {
		t.Fatalf("Live() after release = %d, want 2", got)
	}
}

func TestCookieStackSharesPrefix(t *testing.T) {
	var alloc CookieAllocator
	root := CookieStack{}.Push(alloc.Next())
	child1 := root.Push(alloc.Next())
	child2 := root.Push(alloc.Next())

	if !child1.SharesPrefix(child2, 1) {
		t.Fatal("expected siblings to share their parent's single cookie level")
	}
	if child1.SharesPrefix(child2, 2) {
		t.Fatal("siblings should not share a prefix of length 2 (their own cookie differs)")
	}
}

func TestCookieAllocatorMonotonic(t *testing.T) {
	var alloc CookieAllocator
	prev := alloc.Next()
	for i := 0; i < 100; i++ {
		next := alloc.Next()
		if next <= prev {
			t.Fatalf("cookie allocator not monotonic: prev=%d next=%d", prev, next)
		}
		prev = next
	}
}
