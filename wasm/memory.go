package wasm

import "encoding/binary"

// MemoryInstance is a linear memory instance. Buffer is always a whole
// number of 64KiB pages; Min and Max are its limits in pages.
type MemoryInstance struct {
	Buffer []byte
	Min    uint32
	Max    *uint32
}

// PageCount returns the current size in pages.
func (m *MemoryInstance) PageCount() uint32 {
	return uint32(uint64(len(m.Buffer)) / PageSize)
}

// ValidateAddrRange reports whether the byte range [addr, addr+size) is
// inside the memory.
func (m *MemoryInstance) ValidateAddrRange(addr uint32, size uint64) bool {
	return uint64(addr) < uint64(len(m.Buffer)) && size <= uint64(len(m.Buffer))-uint64(addr)
}

// ReadUint32 reads a little-endian uint32 at addr. ok is false if the read
// would go out of bounds.
func (m *MemoryInstance) ReadUint32(addr uint32) (v uint32, ok bool) {
	if !m.ValidateAddrRange(addr, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Buffer[addr:]), true
}

// PutUint32 writes a little-endian uint32 at addr. ok is false if the write
// would go out of bounds.
func (m *MemoryInstance) PutUint32(addr uint32, v uint32) (ok bool) {
	if !m.ValidateAddrRange(addr, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Buffer[addr:], v)
	return true
}

// ReadBytes returns a view of size bytes at addr, not a copy. ok is false if
// the range is out of bounds.
func (m *MemoryInstance) ReadBytes(addr uint32, size uint32) (view []byte, ok bool) {
	if !m.ValidateAddrRange(addr, uint64(size)) {
		return nil, false
	}
	return m.Buffer[addr : uint64(addr)+uint64(size)], true
}

// Grow appends newPages zeroed pages to the buffer and returns the previous
// page count, or -1 when the result would exceed the maximum.
func (m *MemoryInstance) Grow(newPages uint32) int32 {
	currentPages := m.PageCount()
	max := uint32(memoryMaxPages)
	if m.Max != nil {
		max = *m.Max
	}
	if uint64(currentPages)+uint64(newPages) > uint64(max) {
		return -1
	}
	m.Buffer = append(m.Buffer, make([]byte, uint64(newPages)*PageSize)...)
	return int32(currentPages)
}
