package fb

import (
	"database/sql/driver"
	"io"
	"math/big"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// Rows implements driver.Rows for result set iteration
type Rows struct {
	conn       *Conn
	cursor     *Cursor
	columns    []string
	fields     []Field
	static     []Row // RETURNING row of a statement that opened no result set
	open       bool  // whether the cursor holds the result set
	closed     bool
	dropCursor bool // Whether to drop the cursor when rows are closed
}

// newRows creates a new Rows from an execution result
func newRows(conn *Conn, cursor *Cursor, res *Result, dropCursor bool) *Rows {
	r := &Rows{
		conn:       conn,
		cursor:     cursor,
		dropCursor: dropCursor,
	}
	switch res.Kind {
	case ResultCursor:
		r.open = true
		r.fields = cursor.Fields()
	case ResultReturning:
		r.fields = cursor.Fields()
		if len(res.Returning) > 0 {
			r.static = []Row{res.Returning}
		}
	}
	r.columns = make([]string, len(r.fields))
	for i, f := range r.fields {
		r.columns[i] = f.Name
	}
	return r
}

// Columns returns the column names
func (r *Rows) Columns() []string {
	return r.columns
}

// Close ends the result set, committing a transaction the query started
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.static = nil

	r.conn.mu.Lock()
	defer r.conn.mu.Unlock()
	if r.conn.closed {
		return nil
	}

	// Drop the cursor if we own it
	if r.dropCursor {
		return r.cursor.Drop()
	}
	if r.open {
		return r.cursor.closeRows()
	}
	return nil
}

// Next fetches the next row
func (r *Rows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}

	var row Row
	if r.open {
		r.conn.mu.Lock()
		var err error
		row, err = r.cursor.Fetch()
		r.conn.mu.Unlock()
		if err != nil {
			return err
		}
	} else if len(r.static) > 0 {
		row, r.static = r.static[0], r.static[1:]
	}
	if row == nil {
		return io.EOF
	}

	for i := 0; i < len(dest) && i < len(row); i++ {
		dest[i] = driverValue(row[i])
	}
	return nil
}

// driverValue narrows a fetched value to the types database/sql scans from.
// Exact numerics become strings so no digits are lost.
func driverValue(v any) driver.Value {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case *big.Int:
		return x.String()
	case float32:
		return float64(x)
	}
	return v
}

// ColumnTypeScanType returns the Go type suitable for scanning into
func (r *Rows) ColumnTypeScanType(index int) reflect.Type {
	if index < 0 || index >= len(r.fields) {
		return reflect.TypeOf(new(interface{})).Elem()
	}

	f := r.fields[index]
	switch f.TypeCode {
	case SQL_BOOLEAN:
		return reflect.TypeOf(false)
	case SQL_SHORT, SQL_LONG, SQL_INT64:
		if f.Scale < 0 {
			return reflect.TypeOf("") // String preserves decimal precision
		}
		return reflect.TypeOf(int64(0))
	case SQL_INT128:
		return reflect.TypeOf("")
	case SQL_FLOAT, SQL_DOUBLE, SQL_D_FLOAT:
		return reflect.TypeOf(float64(0))
	case SQL_TEXT, SQL_VARYING:
		if f.SQLSubtype&0xff == charsetOctets {
			return reflect.TypeOf([]byte{})
		}
		return reflect.TypeOf("")
	case SQL_BLOB:
		if f.SQLSubtype == blobSubtypeText {
			return reflect.TypeOf("")
		}
		return reflect.TypeOf([]byte{})
	case SQL_TYPE_DATE, SQL_TYPE_TIME, SQL_TIMESTAMP:
		return reflect.TypeOf(time.Time{})
	default:
		return reflect.TypeOf(new(interface{})).Elem()
	}
}

// ColumnTypeDatabaseTypeName returns the database type name
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	if index < 0 || index >= len(r.fields) {
		return ""
	}
	return r.fields[index].SQLType
}

// ColumnTypeLength returns the length of a column
func (r *Rows) ColumnTypeLength(index int) (length int64, ok bool) {
	if index < 0 || index >= len(r.fields) {
		return 0, false
	}
	// Only return length for variable-length types
	switch r.fields[index].TypeCode {
	case SQL_TEXT, SQL_VARYING:
		return int64(r.fields[index].DisplaySize), true
	}
	return 0, false
}

// ColumnTypeNullable returns whether a column is nullable
func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	if index < 0 || index >= len(r.fields) {
		return false, false
	}
	return r.fields[index].Nullable, true
}

// ColumnTypePrecisionScale returns the precision and scale for NUMERIC/DECIMAL types
func (r *Rows) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	if index < 0 || index >= len(r.fields) {
		return 0, 0, false
	}
	f := r.fields[index]
	if !f.Precision.Valid || f.Precision.Int16 == 0 {
		return 0, 0, false
	}
	// Firebird scales are negative powers of ten
	return int64(f.Precision.Int16), int64(-f.Scale), true
}

// HasNextResultSet reports false; a statement yields at most one result set
func (r *Rows) HasNextResultSet() bool {
	return false
}

// NextResultSet always returns io.EOF
func (r *Rows) NextResultSet() error {
	return io.EOF
}

// Ensure Rows implements the required interfaces
var (
	_ driver.Rows                           = (*Rows)(nil)
	_ driver.RowsColumnTypeScanType         = (*Rows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)
	_ driver.RowsColumnTypeLength           = (*Rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*Rows)(nil)
	_ driver.RowsColumnTypePrecisionScale   = (*Rows)(nil)
	_ driver.RowsNextResultSet              = (*Rows)(nil)
)
