package fb

import (
	"unsafe"
)

// defaultColumnCapacity is the slot count a fresh descriptor is allocated with.
const defaultColumnCapacity = 50

// SQLDA is an XSQLDA allocated in Go memory: the C header followed by Cap()
// XSQLVAR slots, laid out contiguously so it can be handed to fbclient as-is.
type SQLDA struct {
	mem  []uint64
	hdr  *sqldaHeader
	vars []XSQLVAR
}

// NewSQLDA allocates an empty descriptor with room for capacity columns.
func NewSQLDA(capacity int) *SQLDA {
	if capacity < 1 {
		capacity = 1
	}
	size := sqldaHeaderSize + capacity*xsqlvarSize
	mem := make([]uint64, (size+7)/8)
	base := unsafe.Pointer(&mem[0])
	d := &SQLDA{
		mem: mem,
		hdr: (*sqldaHeader)(base),
	}
	d.vars = unsafe.Slice((*XSQLVAR)(unsafe.Add(base, sqldaHeaderSize)), capacity)
	d.hdr.version = SQLDA_VERSION1
	d.hdr.sqln = int16(capacity)
	return d
}

// Cap returns the number of allocated column slots (sqln).
func (d *SQLDA) Cap() int {
	return int(d.hdr.sqln)
}

// Len returns the number of columns the server reported (sqld). It may exceed
// Cap after a describe, in which case the descriptor has to be grown.
func (d *SQLDA) Len() int {
	return int(d.hdr.sqld)
}

// SetLen sets the active column count; the server does this during describe.
func (d *SQLDA) SetLen(n int) {
	d.hdr.sqld = int16(n)
}

// Var returns the i-th column slot.
func (d *SQLDA) Var(i int) *XSQLVAR {
	return &d.vars[i]
}

// Vars returns the described column slots, never more than were allocated.
func (d *SQLDA) Vars() []XSQLVAR {
	n := d.Len()
	if n > d.Cap() {
		n = d.Cap()
	}
	return d.vars[:n]
}

// NeedsGrow reports whether the server described more columns than fit.
func (d *SQLDA) NeedsGrow() bool {
	return d.Len() > d.Cap()
}

func (d *SQLDA) pointer() unsafe.Pointer {
	if d == nil {
		return nil
	}
	return unsafe.Pointer(&d.mem[0])
}

// describeInto runs describe against *d and, when the server reports more
// columns than *d can hold, reallocates *d to the reported count and describes
// again. The server never fills more slots than were allocated.
func describeInto(d **SQLDA, describe func(*SQLDA) error) error {
	if err := describe(*d); err != nil {
		return err
	}
	if !(*d).NeedsGrow() {
		return nil
	}
	*d = NewSQLDA((*d).Len())
	return describe(*d)
}
