package pipeline

// SimMemory is a sparse, byte-addressable backing store for trace-driven
// buffer uploads (vertex streams, textures) and for the ROP caches' read
// replies. It implements regfile.MemoryWriter so the command processor
// can route RecordMemoryWrite records here directly; memctl.Controller
// models the timing of accesses to it, SimMemory only models the bytes.
type SimMemory struct {
	pages    map[uint64][]byte
	pageSize uint64
}

// NewSimMemory builds a SimMemory with the given page granularity.
func NewSimMemory(pageSize uint64) *SimMemory {
	if pageSize == 0 {
		pageSize = 4096
	}
	return &SimMemory{pages: make(map[uint64][]byte), pageSize: pageSize}
}

func (m *SimMemory) page(addr uint64) []byte {
	base := (addr / m.pageSize) * m.pageSize
	p, ok := m.pages[base]
	if !ok {
		p = make([]byte, m.pageSize)
		m.pages[base] = p
	}
	return p
}

// WriteBytes stores data at address, allocating pages as needed.
// Implements regfile.MemoryWriter.
func (m *SimMemory) WriteBytes(address uint64, data []byte) error {
	for len(data) > 0 {
		base := (address / m.pageSize) * m.pageSize
		off := address - base
		p := m.page(address)
		n := uint64(len(p)) - off
		if n > uint64(len(data)) {
			n = uint64(len(data))
		}
		copy(p[off:off+n], data[:n])
		data = data[n:]
		address += n
	}
	return nil
}

// ReadBytes copies n bytes starting at address into a new slice. Unwritten
// pages read as zero, matching a freshly allocated GPU memory image.
func (m *SimMemory) ReadBytes(address uint64, n int) []byte {
	out := make([]byte, n)
	addr := address
	for i := 0; i < n; {
		base := (addr / m.pageSize) * m.pageSize
		off := addr - base
		p, ok := m.pages[base]
		remain := uint64(len(out)-i)
		take := m.pageSize - off
		if take > remain {
			take = remain
		}
		if ok {
			copy(out[i:], p[off:off+take])
		}
		i += int(take)
		addr += take
	}
	return out
}
