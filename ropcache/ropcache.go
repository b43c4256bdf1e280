// Package ropcache implements the buffer-mode ROP cache (spec.md §4.9):
// a set-associative cache of fixed-size lines backing a render target,
// with the fetch/allocate/read/write/save-restore-reset-state surface
// the generic ROP drives.
package ropcache

import (
	"fmt"

	"github.com/cg1sim/cg1sim/memctl"
)

// LineState is one cache line's occupancy/transit state.
type LineState uint8

const (
	LineInvalid LineState = iota
	LineClean
	LineDirty
	LineReservedWrite
	LineInTransitRead
	LineInTransitWrite
)

// line is one way's worth of cached data for one set.
type line struct {
	state      LineState
	address    uint64
	data       []byte
	compressed bool
	txID       uint64
}

// Config parameterizes one Cache instance.
type Config struct {
	Ways           int
	Lines          int // sets
	PixelsPerLine  int
	BytesPerPixel  int
	ComprDisabled  bool

	// BlocksPerCycle caps how many lines SaveState/RestoreState/ResetState
	// move per call (spec.md §4.9: these stream block-state memory across
	// cycles rather than completing in one shot). Defaults to 1.
	BlocksPerCycle int
}

func (c Config) lineBytes() int { return c.PixelsPerLine * c.BytesPerPixel }

// Cache is a set-associative, buffer-mode cache backing one render
// target's memory image.
type Cache struct {
	cfg Config

	baseAddress uint64
	sets        [][]line // [set][way]

	mem *memctl.Controller

	// saveCursor walks block-state memory (flattened across all sets and
	// ways) for save/restore/reset, BlocksPerCycle lines per call,
	// reporting false while work remains.
	saveCursor int

	// pendingSave accumulates the line contents captured so far by an
	// in-progress SaveState call sequence.
	pendingSave []line

	// snapshots holds completed saves, keyed by the verb's state-buffer
	// address, for RestoreState to read back from.
	snapshots map[uint64][]line

	FetchHits, FetchMisses     uint64
	AllocateOK, AllocateFail   uint64
}

func (c *Cache) totalLines() int { return c.cfg.Lines * c.cfg.Ways }

func (c *Cache) blocksPerCycle() int {
	if c.cfg.BlocksPerCycle < 1 {
		return 1
	}
	return c.cfg.BlocksPerCycle
}

func (c *Cache) lineAt(i int) *line {
	return &c.sets[i/c.cfg.Ways][i%c.cfg.Ways]
}

// New builds a Cache backed by mem for its memory transactions.
func New(cfg Config, mem *memctl.Controller) *Cache {
	if cfg.Ways < 1 {
		cfg.Ways = 1
	}
	if cfg.Lines < 1 {
		cfg.Lines = 1
	}
	c := &Cache{cfg: cfg, mem: mem}
	c.allocateSets()
	return c
}

func (c *Cache) allocateSets() {
	c.sets = make([][]line, c.cfg.Lines)
	for i := range c.sets {
		c.sets[i] = make([]line, c.cfg.Ways)
	}
}

// Reset invalidates every line.
func (c *Cache) Reset() {
	c.allocateSets()
	c.saveCursor = 0
	c.pendingSave = nil
}

// Swap flushes and rebinds the cache to a new backing buffer address.
func (c *Cache) Swap(baseAddress uint64) {
	c.Reset()
	c.baseAddress = baseAddress
}

// Clear force-writes pixel, repeated across every line of every set, as
// a single operation (CLEAR_COLOR/CLEAR_ZSTENCIL, spec.md §4.8 scenario
// 1), bypassing the fetch/allocate/RAW-CAM path a drawn stamp goes
// through since a clear has no prior contents worth preserving.
func (c *Cache) Clear(pixel []byte) {
	bpp := c.cfg.BytesPerPixel
	if bpp <= 0 {
		bpp = 1
	}
	lineBytes := c.cfg.lineBytes()
	fill := make([]byte, lineBytes)
	if len(pixel) > 0 {
		for i := 0; i < lineBytes; i += bpp {
			copy(fill[i:], pixel)
		}
	}
	for s := range c.sets {
		for w := range c.sets[s] {
			l := &c.sets[s][w]
			l.data = append([]byte(nil), fill...)
			l.state = LineDirty
			l.address = c.baseAddress + uint64(s*c.cfg.Ways+w)*uint64(lineBytes)
		}
	}
}

func (c *Cache) setIndex(address uint64) int {
	return int((address / uint64(c.cfg.lineBytes())) % uint64(c.cfg.Lines))
}

func (c *Cache) findWay(set int, address uint64) (int, bool) {
	for w, l := range c.sets[set] {
		if l.state != LineInvalid && l.address == address {
			return w, true
		}
	}
	return -1, false
}

func (c *Cache) evictWay(set int) int {
	for w, l := range c.sets[set] {
		if l.state == LineInvalid {
			return w
		}
	}
	// no free way: evict way 0 (simple deterministic policy; the
	// functional core's correctness doesn't depend on which line is
	// evicted, only that evictions are deterministic for replay)
	return 0
}

// Fetch reports whether address's line is resident, issuing a read
// memory transaction on miss. Callers retry across cycles until it
// returns true.
func (c *Cache) Fetch(cycle uint64, address uint64) bool {
	set := c.setIndex(address)
	if w, ok := c.findWay(set, address); ok {
		l := &c.sets[set][w]
		if l.state == LineInTransitRead || l.state == LineInTransitWrite {
			return false
		}
		return true
	}

	w := c.evictWay(set)
	l := &c.sets[set][w]
	if l.state == LineInTransitRead {
		return false
	}
	l.state = LineInTransitRead
	l.address = address
	l.data = make([]byte, c.cfg.lineBytes())
	l.txID = c.mem.Issue(cycle, memctl.TransactionRead, address, nil)
	return false
}

// Allocate reserves a line for write-only access, evicting whatever was
// there (spec.md: "evict dirty lines"). Returns true once the line is
// ready for writes (immediately, for a write-only reservation).
func (c *Cache) Allocate(address uint64) bool {
	set := c.setIndex(address)
	if w, ok := c.findWay(set, address); ok {
		l := &c.sets[set][w]
		if l.state == LineInTransitRead || l.state == LineInTransitWrite {
			c.AllocateFail++
			return false
		}
		l.state = LineReservedWrite
		c.AllocateOK++
		return true
	}
	w := c.evictWay(set)
	l := &c.sets[set][w]
	l.state = LineReservedWrite
	l.address = address
	l.data = make([]byte, c.cfg.lineBytes())
	c.AllocateOK++
	return true
}

// Read copies nbytes from address's line, starting at the line-relative
// byte offset, into dst. Returns false if the line is not resident.
func (c *Cache) Read(address uint64, offset, nbytes int, dst []byte) bool {
	set := c.setIndex(address)
	w, ok := c.findWay(set, address)
	if !ok {
		return false
	}
	l := &c.sets[set][w]
	if l.state == LineInTransitRead || l.state == LineInTransitWrite {
		return false
	}
	copy(dst, l.data[offset:offset+nbytes])
	return true
}

// Write merges src into address's line at the line-relative byte
// offset, honoring a per-byte mask (nil mask writes every byte).
func (c *Cache) Write(address uint64, offset int, src []byte, mask []bool) bool {
	set := c.setIndex(address)
	w, ok := c.findWay(set, address)
	if !ok {
		return false
	}
	l := &c.sets[set][w]
	for i, b := range src {
		if mask == nil || (i < len(mask) && mask[i]) {
			l.data[offset+i] = b
		}
	}
	l.state = LineDirty
	return true
}

// Update advances in-flight memory transactions and emits at most one
// outstanding transaction per cycle request — callers issue transactions
// via Fetch; Update here just drains completed replies.
func (c *Cache) Update(cycle uint64) {
	for _, tx := range c.mem.Step(cycle) {
		c.ProcessMemoryTransaction(tx)
	}
}

// ProcessMemoryTransaction merges an incoming reply into the line that
// requested it.
func (c *Cache) ProcessMemoryTransaction(tx memctl.Transaction) {
	set := c.setIndex(tx.Address)
	for w := range c.sets[set] {
		l := &c.sets[set][w]
		if l.txID == tx.ID && l.state == LineInTransitRead {
			if tx.Bytes != nil {
				copy(l.data, tx.Bytes)
			}
			l.state = LineClean
			l.txID = 0
			return
		}
	}
}

// SaveState, RestoreState, and ResetState iterate block-state memory
// (every line of every set) BlocksPerCycle lines at a time, returning
// false while work remains — spec.md §4.9's "each call returns false
// while work remains" contract, so the calling ROP stage can poll it
// across cycles without blocking.

// SaveState copies the cache's live line contents into a snapshot keyed
// by address, BlocksPerCycle lines per call. A subsequent RestoreState
// with the same address reproduces the saved bytes exactly.
func (c *Cache) SaveState(address uint64) bool {
	total := c.totalLines()
	if c.saveCursor == 0 && c.pendingSave == nil {
		c.pendingSave = make([]line, 0, total)
	}
	end := c.saveCursor + c.blocksPerCycle()
	if end > total {
		end = total
	}
	for i := c.saveCursor; i < end; i++ {
		src := c.lineAt(i)
		c.pendingSave = append(c.pendingSave, line{
			state:      src.state,
			address:    src.address,
			data:       append([]byte(nil), src.data...),
			compressed: src.compressed,
		})
	}
	c.saveCursor = end
	if c.saveCursor < total {
		return false
	}
	if c.snapshots == nil {
		c.snapshots = make(map[uint64][]line)
	}
	c.snapshots[address] = c.pendingSave
	c.pendingSave = nil
	c.saveCursor = 0
	return true
}

// RestoreState copies a previously saved snapshot back into the cache's
// live lines, BlocksPerCycle lines per call. An address with no
// snapshot on file completes immediately, leaving the cache untouched.
func (c *Cache) RestoreState(address uint64) bool {
	snap, ok := c.snapshots[address]
	if !ok {
		c.saveCursor = 0
		return true
	}
	total := c.totalLines()
	end := c.saveCursor + c.blocksPerCycle()
	if end > total {
		end = total
	}
	for i := c.saveCursor; i < end && i < len(snap); i++ {
		src := snap[i]
		*c.lineAt(i) = line{
			state:      src.state,
			address:    src.address,
			data:       append([]byte(nil), src.data...),
			compressed: src.compressed,
		}
	}
	c.saveCursor = end
	if c.saveCursor < total {
		return false
	}
	c.saveCursor = 0
	return true
}

// ResetState zeroes every line, BlocksPerCycle lines per call.
func (c *Cache) ResetState() bool {
	total := c.totalLines()
	end := c.saveCursor + c.blocksPerCycle()
	if end > total {
		end = total
	}
	for i := c.saveCursor; i < end; i++ {
		*c.lineAt(i) = line{}
	}
	c.saveCursor = end
	if c.saveCursor < total {
		return false
	}
	c.saveCursor = 0
	return true
}

func (c *Cache) String() string {
	return fmt.Sprintf("ropcache.Cache{ways=%d sets=%d base=0x%x}", c.cfg.Ways, c.cfg.Lines, c.baseAddress)
}
