// Package regfile implements the command processor and register file of
// spec.md §4.2: it receives a stream of records (register writes, memory
// writes, verbs), distributes register updates to every stage that owns
// the affected register, and enforces the READY-only write contract.
package regfile

import "github.com/cg1sim/cg1sim/types"

// RecordKind distinguishes the three record shapes a command stream
// carries (spec.md §4.2).
type RecordKind uint8

const (
	RecordRegisterWrite RecordKind = iota
	RecordMemoryWrite
	RecordVerb
)

// RegisterID names a register in the register file; sub-index further
// selects within a register array (e.g. one light's color channel).
type RegisterID uint32

// Record is one command-stream entry. Only the fields relevant to Kind
// are meaningful.
type Record struct {
	Kind RecordKind

	Register RegisterID
	SubIndex uint32
	Value    types.RegValue

	Address uint64
	Bytes   []byte

	Verb types.Verb
}

// NewRegisterWrite builds a register-write record.
func NewRegisterWrite(reg RegisterID, subIndex uint32, value types.RegValue) Record {
	return Record{Kind: RecordRegisterWrite, Register: reg, SubIndex: subIndex, Value: value}
}

// NewMemoryWrite builds a memory-write record.
func NewMemoryWrite(address uint64, bytes []byte) Record {
	return Record{Kind: RecordMemoryWrite, Address: address, Bytes: bytes}
}

// NewVerbRecord builds a verb record.
func NewVerbRecord(v types.Verb) Record {
	return Record{Kind: RecordVerb, Verb: v}
}

// NewVerbRecordWithAddress builds a verb record carrying a state-buffer
// address, used by SAVE_*_STATE/RESTORE_*_STATE (spec.md §4.2 scenario
// 3: "SAVE_COLOR_STATE with state-buffer address 0x01000000").
func NewVerbRecordWithAddress(v types.Verb, address uint64) Record {
	return Record{Kind: RecordVerb, Verb: v, Address: address}
}
