// Package tracefile implements the meta-stream trace file spec.md §6
// describes: a fixed 16KiB header identifying the simulated
// architecture's shape, followed by the command-record stream the
// command processor (regfile) consumes. A trace is the simulator's
// only input — there is no live graphics API underneath it.
package tracefile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cg1sim/cg1sim/cgerr"
	"github.com/cg1sim/cg1sim/regfile"
	"github.com/cg1sim/cg1sim/types"
)

// Signature is the header's null-padded identity string (spec.md §6:
// "20-byte signature \"computGeneral.com\"").
const Signature = "computGeneral.com"

// Version is the only header version this loader accepts.
const Version uint32 = 0x0100

// HeaderSize is the trace file's fixed header region, zero-padded past
// the signature/version/parameters.
const HeaderSize = 16384

// Header carries the simulation-shaping parameters a trace was captured
// against (spec.md §6); values are advisory. OpenReader accepts any
// parameter values and does not compare them against the configured
// simulator, so a mismatch is neither a load failure nor a warning.
type Header struct {
	StartFrame    uint32
	FrameCount    uint32
	MemSize       uint32
	MappedMemSize uint32
	TexBlockDim   uint32
	ScanWidth     uint32
	ScanHeight    uint32
	OverScanWidth uint32
	OverScanHeight uint32
	DoubleBuffer  bool
	FetchRate     uint32
	MemControllerV2     bool
	SecondInterleaving bool
}

// Matches reports whether h describes the same simulation shape as
// want, field for field. Neither OpenReader nor the cg1sim command
// calls it.
func (h Header) Matches(want Header) bool {
	return h == want
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:20], []byte(Signature))
	binary.LittleEndian.PutUint32(buf[20:24], Version)
	body := buf[24:]
	putU32(body, 0, h.StartFrame)
	putU32(body, 4, h.FrameCount)
	putU32(body, 8, h.MemSize)
	putU32(body, 12, h.MappedMemSize)
	putU32(body, 16, h.TexBlockDim)
	putU32(body, 20, h.ScanWidth)
	putU32(body, 24, h.ScanHeight)
	putU32(body, 28, h.OverScanWidth)
	putU32(body, 32, h.OverScanHeight)
	putBool(body, 36, h.DoubleBuffer)
	putU32(body, 37, h.FetchRate)
	putBool(body, 41, h.MemControllerV2)
	putBool(body, 42, h.SecondInterleaving)
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, cgerr.NewConfigError("trace", "header shorter than 16384 bytes", nil)
	}
	sig := string(trimNulls(buf[0:20]))
	if sig != Signature {
		return Header{}, cgerr.NewConfigError("trace", fmt.Sprintf("bad signature %q", sig), nil)
	}
	version := binary.LittleEndian.Uint32(buf[20:24])
	if version != Version {
		return Header{}, cgerr.NewConfigError("trace", fmt.Sprintf("unsupported version %#x", version), nil)
	}
	body := buf[24:]
	return Header{
		StartFrame:     getU32(body, 0),
		FrameCount:     getU32(body, 4),
		MemSize:        getU32(body, 8),
		MappedMemSize:  getU32(body, 12),
		TexBlockDim:    getU32(body, 16),
		ScanWidth:      getU32(body, 20),
		ScanHeight:     getU32(body, 24),
		OverScanWidth:  getU32(body, 28),
		OverScanHeight: getU32(body, 32),
		DoubleBuffer:   body[36] != 0,
		FetchRate:      getU32(body, 37),
		MemControllerV2:    body[41] != 0,
		SecondInterleaving: body[42] != 0,
	}, nil
}

func trimNulls(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

func putU32(b []byte, off int, v uint32)     { binary.LittleEndian.PutUint32(b[off:off+4], v) }
func getU32(b []byte, off int) uint32        { return binary.LittleEndian.Uint32(b[off : off+4]) }
func putBool(b []byte, off int, v bool) {
	if v {
		b[off] = 1
	}
}

// recordTag identifies one record's wire shape in the command stream
// following the header (spec.md §4.2's three record kinds).
type recordTag uint8

const (
	tagRegisterWrite recordTag = iota
	tagMemoryWrite
	tagVerb
)

// Writer serializes a Header followed by a record stream.
type Writer struct {
	w   *bufio.Writer
	buf [4]byte
}

// NewWriter opens path for writing and immediately writes hdr.
func NewWriter(path string, hdr Header) (*Writer, io.Closer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, cgerr.NewConfigError("trace", "creating trace file "+path, err)
	}
	w := &Writer{w: bufio.NewWriter(f)}
	if _, err := w.w.Write(hdr.encode()); err != nil {
		f.Close()
		return nil, nil, cgerr.NewConfigError("trace", "writing trace header", err)
	}
	return w, f, nil
}

// WriteRecord appends one command-stream record.
func (w *Writer) WriteRecord(rec regfile.Record) error {
	switch rec.Kind {
	case regfile.RecordRegisterWrite:
		return w.writeRegisterWrite(rec)
	case regfile.RecordMemoryWrite:
		return w.writeMemoryWrite(rec)
	case regfile.RecordVerb:
		return w.writeVerb(rec)
	default:
		return fmt.Errorf("tracefile: unknown record kind %d", rec.Kind)
	}
}

func (w *Writer) writeByte(b byte) error { return w.w.WriteByte(b) }

func (w *Writer) writeU32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:], v)
	_, err := w.w.Write(w.buf[:])
	return err
}

func (w *Writer) writeU64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.w.Write(b[:])
	return err
}

func (w *Writer) writeRegisterWrite(rec regfile.Record) error {
	if err := w.writeByte(byte(tagRegisterWrite)); err != nil {
		return err
	}
	if err := w.writeU32(uint32(rec.Register)); err != nil {
		return err
	}
	if err := w.writeU32(rec.SubIndex); err != nil {
		return err
	}
	return writeRegValue(w, rec.Value)
}

func (w *Writer) writeMemoryWrite(rec regfile.Record) error {
	if err := w.writeByte(byte(tagMemoryWrite)); err != nil {
		return err
	}
	if err := w.writeU64(rec.Address); err != nil {
		return err
	}
	if err := w.writeU32(uint32(len(rec.Bytes))); err != nil {
		return err
	}
	_, err := w.w.Write(rec.Bytes)
	return err
}

func (w *Writer) writeVerb(rec regfile.Record) error {
	if err := w.writeByte(byte(tagVerb)); err != nil {
		return err
	}
	if err := w.writeByte(byte(rec.Verb)); err != nil {
		return err
	}
	return w.writeU64(rec.Address)
}

// Flush flushes buffered output to the underlying file.
func (w *Writer) Flush() error { return w.w.Flush() }

// Reader deserializes a Header followed by a record stream.
type Reader struct {
	r      *bufio.Reader
	Header Header
}

// OpenReader opens path, decodes its header, and returns a Reader
// positioned at the first record.
func OpenReader(path string) (*Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, cgerr.NewConfigError("trace", "opening trace file "+path, err)
	}
	br := bufio.NewReader(f)
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(br, buf); err != nil {
		f.Close()
		return nil, nil, cgerr.NewConfigError("trace", "reading trace header", err)
	}
	hdr, err := decodeHeader(buf)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return &Reader{r: br, Header: hdr}, f, nil
}

// ReadRecord reads the next record, returning io.EOF when the stream
// is exhausted.
func (r *Reader) ReadRecord() (regfile.Record, error) {
	tag, err := r.r.ReadByte()
	if err != nil {
		return regfile.Record{}, err
	}
	switch recordTag(tag) {
	case tagRegisterWrite:
		return r.readRegisterWrite()
	case tagMemoryWrite:
		return r.readMemoryWrite()
	case tagVerb:
		return r.readVerb()
	default:
		return regfile.Record{}, fmt.Errorf("tracefile: unknown record tag %d", tag)
	}
}

func (r *Reader) readU32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (r *Reader) readU64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (r *Reader) readRegisterWrite() (regfile.Record, error) {
	reg, err := r.readU32()
	if err != nil {
		return regfile.Record{}, err
	}
	sub, err := r.readU32()
	if err != nil {
		return regfile.Record{}, err
	}
	val, err := readRegValue(r)
	if err != nil {
		return regfile.Record{}, err
	}
	return regfile.NewRegisterWrite(regfile.RegisterID(reg), sub, val), nil
}

func (r *Reader) readMemoryWrite() (regfile.Record, error) {
	addr, err := r.readU64()
	if err != nil {
		return regfile.Record{}, err
	}
	n, err := r.readU32()
	if err != nil {
		return regfile.Record{}, err
	}
	bytes := make([]byte, n)
	if _, err := io.ReadFull(r.r, bytes); err != nil {
		return regfile.Record{}, err
	}
	return regfile.NewMemoryWrite(addr, bytes), nil
}

func (r *Reader) readVerb() (regfile.Record, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return regfile.Record{}, err
	}
	addr, err := r.readU64()
	if err != nil {
		return regfile.Record{}, err
	}
	return regfile.NewVerbRecordWithAddress(types.Verb(b), addr), nil
}
