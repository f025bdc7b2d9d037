package fb

import (
	"encoding/binary"
	"unsafe"
)

// slot locates one column inside a row buffer.
type slot struct {
	offset int // first byte of the value
	length int // bytes reserved for the value, including a VARCHAR length prefix
	ind    int // 2-byte null indicator
}

// rowLayout is the byte layout of one descriptor's row buffer.
type rowLayout struct {
	slots []slot
	size  int
}

// alignUp rounds n up to a multiple of a. a must be a power of two.
func alignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// columnShape returns the bytes a column occupies and the boundary it starts on.
func columnShape(v *XSQLVAR) (length, alignment int) {
	length = int(v.SQLLen)
	alignment = length
	switch v.BaseType() {
	case SQL_TEXT:
		alignment = 1
	case SQL_VARYING:
		length += 2
		alignment = 2
	}
	if alignment < 1 || alignment&(alignment-1) != 0 {
		alignment = 1
	}
	return length, alignment
}

// computeLayout walks the columns in order and places each value on its
// alignment, followed by a 2-byte aligned null indicator. The same walk is used
// to size buffers and to wire column pointers, so the two always agree.
func computeLayout(vars []XSQLVAR) rowLayout {
	if len(vars) == 0 {
		return rowLayout{}
	}
	l := rowLayout{slots: make([]slot, len(vars))}
	offset := 0
	for i := range vars {
		length, alignment := columnShape(&vars[i])
		offset = alignUp(offset, alignment)
		l.slots[i].offset = offset
		l.slots[i].length = length
		offset += length
		offset = alignUp(offset, 2)
		l.slots[i].ind = offset
		offset += 2
	}
	l.size = offset + 2
	return l
}

// rowBuffer is a row's backing storage, 8-byte aligned so wide columns are
// naturally aligned for the client library.
type rowBuffer struct {
	words []uint64
	bytes []byte
}

// grow makes sure the buffer holds at least n bytes, reallocating when it must.
func (b *rowBuffer) grow(n int) {
	if n <= len(b.bytes) {
		return
	}
	b.words = make([]uint64, (n+7)/8)
	b.bytes = unsafe.Slice((*byte)(unsafe.Pointer(&b.words[0])), len(b.words)*8)
}

// release drops the storage.
func (b *rowBuffer) release() {
	b.words = nil
	b.bytes = nil
}

// wire points every column's data and indicator at its slot in buf.
func (l rowLayout) wire(vars []XSQLVAR, buf *rowBuffer) {
	for i := range vars {
		if i >= len(l.slots) {
			break
		}
		s := l.slots[i]
		vars[i].sqldata = uintptr(unsafe.Pointer(&buf.bytes[s.offset]))
		vars[i].sqlind = uintptr(unsafe.Pointer(&buf.bytes[s.ind]))
	}
}

// isNull reads the indicator of column i.
func (l rowLayout) isNull(buf []byte, i int) bool {
	return int16(binary.NativeEndian.Uint16(buf[l.slots[i].ind:])) < 0
}

// setNull writes the indicator of column i.
func (l rowLayout) setNull(buf []byte, i int, null bool) {
	var v int16
	if null {
		v = -1
	}
	binary.NativeEndian.PutUint16(buf[l.slots[i].ind:], uint16(v))
}

// value returns the value bytes of column i.
func (l rowLayout) value(buf []byte, i int) []byte {
	s := l.slots[i]
	return buf[s.offset : s.offset+s.length]
}
