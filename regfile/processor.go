package regfile

import (
	"fmt"

	"github.com/cg1sim/cg1sim/cgerr"
	"github.com/cg1sim/cg1sim/dynobj"
	"github.com/cg1sim/cg1sim/types"
)

// RegisterOwner is a pipeline stage that owns one or more registers.
// CommandProcessor calls State before every write to enforce the
// READY-only contract, and ApplyRegister to deliver the update.
type RegisterOwner interface {
	Name() string
	State() types.StageState
	ApplyRegister(subIndex uint32, value types.RegValue) error
}

// MemoryWriter accepts raw memory-write records. The command processor
// forwards RecordMemoryWrite records to it verbatim; nil is a legal
// configuration (memory writes are simply dropped, used by tests that
// exercise only the register path).
type MemoryWriter interface {
	WriteBytes(address uint64, data []byte) error
}

// VerbHandler reacts to a verb record. Implementations usually live on
// the stage(s) the verb concerns (e.g. a DRAW verb wakes primitive
// assembly; a SAVE_COLOR_STATE verb wakes the color ROP cache). address
// carries the verb's state-buffer address for SAVE_*_STATE/
// RESTORE_*_STATE records; every other verb leaves it zero.
type VerbHandler interface {
	HandleVerb(v types.Verb, address uint64, cookie dynobj.CookieStack) error
}

// CommandProcessor distributes register writes, memory writes, and verbs
// to registered owners/handlers, and tracks the cookie chain of the
// command stream currently in flight (spec.md §3, §4.2).
type CommandProcessor struct {
	owners   map[RegisterID][]RegisterOwner
	verbs    []VerbHandler
	mem      MemoryWriter
	cookies  *dynobj.CookieAllocator
	current  dynobj.CookieStack
}

// NewCommandProcessor builds an empty CommandProcessor. cookies may be
// nil if the caller never needs a fresh cookie minted (e.g. unit tests
// that supply their own CookieStack via SetCurrentCookie).
func NewCommandProcessor(cookies *dynobj.CookieAllocator) *CommandProcessor {
	return &CommandProcessor{
		owners:  make(map[RegisterID][]RegisterOwner),
		cookies: cookies,
	}
}

// RegisterOwner associates owner with reg; every owner of a register
// gets the write (spec.md §4.2: "Distributes... to every stage that owns
// the register").
func (cp *CommandProcessor) RegisterOwner(reg RegisterID, owner RegisterOwner) {
	cp.owners[reg] = append(cp.owners[reg], owner)
}

// AddVerbHandler registers h to receive every verb record processed.
func (cp *CommandProcessor) AddVerbHandler(h VerbHandler) {
	cp.verbs = append(cp.verbs, h)
}

// SetMemoryWriter installs the sink for memory-write records.
func (cp *CommandProcessor) SetMemoryWriter(w MemoryWriter) {
	cp.mem = w
}

// CurrentCookie returns the cookie chain new triangles/draws should
// inherit (spec.md §4.3: "Each emitted triangle... inherits the cookie
// chain of the current DRAW command").
func (cp *CommandProcessor) CurrentCookie() dynobj.CookieStack {
	return cp.current
}

// SetCurrentCookie overrides the active cookie chain directly, used by
// tests and by replay tooling that seeds a specific trace point.
func (cp *CommandProcessor) SetCurrentCookie(c dynobj.CookieStack) {
	cp.current = c
}

// Dispatch processes one record. Register writes are rejected with
// cgerr.ErrNotReady if any owning stage is not READY — none of the
// owners are updated in that case, matching the atomic-or-nothing intent
// of "stages apply the update atomically between batches" (spec.md
// §4.2).
func (cp *CommandProcessor) Dispatch(rec Record) error {
	switch rec.Kind {
	case RecordRegisterWrite:
		return cp.dispatchRegisterWrite(rec)
	case RecordMemoryWrite:
		if cp.mem == nil {
			return nil
		}
		return cp.mem.WriteBytes(rec.Address, rec.Bytes)
	case RecordVerb:
		return cp.dispatchVerb(rec)
	default:
		return fmt.Errorf("regfile: unknown record kind %d", rec.Kind)
	}
}

func (cp *CommandProcessor) dispatchRegisterWrite(rec Record) error {
	owners := cp.owners[rec.Register]
	for _, o := range owners {
		if o.State() != types.StageReady {
			return fmt.Errorf("regfile: register %d write rejected, owner %q state %v: %w",
				rec.Register, o.Name(), o.State(), cgerr.ErrNotReady)
		}
	}
	for _, o := range owners {
		if err := o.ApplyRegister(rec.SubIndex, rec.Value); err != nil {
			return fmt.Errorf("regfile: owner %q rejected register %d: %w", o.Name(), rec.Register, err)
		}
	}
	return nil
}

func (cp *CommandProcessor) dispatchVerb(rec Record) error {
	v := rec.Verb
	if v == types.VerbDraw {
		if cp.cookies != nil {
			cookie := cp.cookies.Next()
			cp.current = cp.current.Push(cookie)
		}
	}
	for _, h := range cp.verbs {
		if err := h.HandleVerb(v, rec.Address, cp.current); err != nil {
			return fmt.Errorf("regfile: verb %v rejected: %w", v, err)
		}
	}
	return nil
}
