package fb

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// fltMin is the smallest normalized float32 magnitude (C FLT_MIN).
const fltMin = 1.17549435082228750797e-38

// charsetOctets is the character set id of CHARACTER SET OCTETS.
const charsetOctets = 1

// blob subtypes
const (
	blobSubtypeBinary = 0
	blobSubtypeText   = 1
)

// codec converts between Values and the wire format of one column. Blob
// columns need the connection's handles, so a codec is bound to a Connection.
type codec struct {
	api    clientAPI
	db     *DBHandle
	tr     *TrHandle
	status *StatusVector
	text   *textEncoding
	loc    *time.Location
	logger *zap.Logger
}

// isOctets reports whether a CHAR/VARCHAR column holds raw bytes.
func isOctets(v *XSQLVAR) bool {
	return v.SQLSubtype&0xff == charsetOctets
}

// =============================================================================
// Encode
// =============================================================================

// encodeParams binds args into the input buffer laid out by l.
func (c *codec) encodeParams(vars []XSQLVAR, l rowLayout, buf *rowBuffer, args []any) error {
	if len(args) != len(vars) {
		return errors.Errorf("statement requires %d items; %d given", len(vars), len(args))
	}
	buf.grow(l.size)
	l.wire(vars, buf)
	for i := range vars {
		v := &vars[i]
		val, err := valueOf(args[i])
		if err != nil {
			return errors.Wrapf(err, "parameter %d", i+1)
		}
		if val.Kind == KindNull {
			if !v.Nullable() {
				return errors.Wrapf(ErrNotNullable, "parameter %d", i+1)
			}
			l.setNull(buf.bytes, i, true)
			v.sqldata = 0
			continue
		}
		l.setNull(buf.bytes, i, false)
		if err := c.encode(v, l.value(buf.bytes, i), val); err != nil {
			return errors.Wrapf(err, "parameter %d", i+1)
		}
	}
	return nil
}

// encode writes a non-null value into dst, the column's slot in a row buffer.
func (c *codec) encode(v *XSQLVAR, dst []byte, val Value) error {
	switch v.BaseType() {
	case SQL_TEXT:
		b, err := c.textBytes(v, val)
		if err != nil {
			return err
		}
		if len(b) > int(v.SQLLen) {
			return errors.Wrapf(ErrValueTooLong, "CHAR overflow: %d bytes exceeds %d byte(s) allowed", len(b), v.SQLLen)
		}
		n := copy(dst, b)
		pad := byte(' ')
		if isOctets(v) {
			pad = 0
		}
		for i := n; i < int(v.SQLLen); i++ {
			dst[i] = pad
		}

	case SQL_VARYING:
		b, err := c.textBytes(v, val)
		if err != nil {
			return err
		}
		if len(b) > int(v.SQLLen) {
			return errors.Wrapf(ErrValueTooLong, "VARCHAR overflow: %d bytes exceeds %d byte(s) allowed", len(b), v.SQLLen)
		}
		binary.NativeEndian.PutUint16(dst[0:2], uint16(len(b)))
		copy(dst[2:], b)

	case SQL_SHORT:
		n, err := val.scaledInteger(v.SQLScale)
		if err != nil {
			return err
		}
		if !n.IsInt64() || n.Int64() < math.MinInt16 || n.Int64() > math.MaxInt16 {
			return errors.Wrapf(ErrOverflow, "short integer overflow: %s", n)
		}
		binary.NativeEndian.PutUint16(dst, uint16(int16(n.Int64())))

	case SQL_LONG:
		n, err := val.scaledInteger(v.SQLScale)
		if err != nil {
			return err
		}
		if !n.IsInt64() || n.Int64() < math.MinInt32 || n.Int64() > math.MaxInt32 {
			return errors.Wrapf(ErrOverflow, "integer overflow: %s", n)
		}
		binary.NativeEndian.PutUint32(dst, uint32(int32(n.Int64())))

	case SQL_INT64:
		n, err := val.scaledInteger(v.SQLScale)
		if err != nil {
			return err
		}
		if !n.IsInt64() {
			return errors.Wrapf(ErrOverflow, "bigint overflow: %s", n)
		}
		binary.NativeEndian.PutUint64(dst, uint64(n.Int64()))

	case SQL_INT128:
		n, err := val.scaledInteger(v.SQLScale)
		if err != nil {
			return err
		}
		x, err := parseInt128(n.String())
		if err != nil {
			return err
		}
		x.put(dst)

	case SQL_FLOAT:
		f, err := val.toFloat()
		if err != nil {
			return err
		}
		if a := math.Abs(f); f != 0 && (a < fltMin || a > math.MaxFloat32) {
			return errors.Wrapf(ErrOverflow, "float overflow: %v", f)
		}
		binary.NativeEndian.PutUint32(dst, math.Float32bits(float32(f)))

	case SQL_DOUBLE, SQL_D_FLOAT:
		f, err := val.toFloat()
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint64(dst, math.Float64bits(f))

	case SQL_BOOLEAN:
		b, err := val.toBool()
		if err != nil {
			return err
		}
		dst[0] = 0
		if b {
			dst[0] = 1
		}

	case SQL_TYPE_DATE:
		t, err := val.toTime(c.loc)
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint32(dst, uint32(encodeDate(t)))

	case SQL_TYPE_TIME:
		t, err := val.toTime(c.loc)
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint32(dst, encodeTime(t))

	case SQL_TIMESTAMP:
		t, err := val.toTime(c.loc)
		if err != nil {
			return err
		}
		date, tod := encodeTimestamp(t, c.loc)
		binary.NativeEndian.PutUint32(dst[0:4], uint32(date))
		binary.NativeEndian.PutUint32(dst[4:8], tod)

	case SQL_BLOB:
		var data []byte
		if val.Kind == KindBytes || v.SQLSubtype != blobSubtypeText {
			s, raw := val.toText()
			if raw == nil {
				raw = []byte(s)
			}
			data = raw
		} else {
			s, _ := val.toText()
			b, err := c.text.encode(s)
			if err != nil {
				return err
			}
			data = b
		}
		id, err := c.writeBlob(data)
		if err != nil {
			return err
		}
		putQuad(dst, id)

	default:
		return errors.Wrapf(ErrUnsupportedType, "unsupported datatype (%d)", v.BaseType())
	}
	return nil
}

// textBytes renders val for a CHAR or VARCHAR column.
func (c *codec) textBytes(v *XSQLVAR, val Value) ([]byte, error) {
	s, raw := val.toText()
	if raw != nil {
		return raw, nil
	}
	if isOctets(v) {
		return []byte(s), nil
	}
	return c.text.encode(s)
}

func putQuad(dst []byte, q Quad) {
	binary.NativeEndian.PutUint32(dst[0:4], uint32(q.High))
	binary.NativeEndian.PutUint32(dst[4:8], q.Low)
}

func readQuad(src []byte) Quad {
	return Quad{
		High: int32(binary.NativeEndian.Uint32(src[0:4])),
		Low:  binary.NativeEndian.Uint32(src[4:8]),
	}
}

// =============================================================================
// Decode
// =============================================================================

// decodeRow decodes every column of the buffer laid out by l.
func (c *codec) decodeRow(vars []XSQLVAR, l rowLayout, buf []byte) (Row, error) {
	row := make(Row, len(vars))
	for i := range vars {
		if l.isNull(buf, i) {
			continue
		}
		val, err := c.decode(&vars[i], l.value(buf, i))
		if err != nil {
			return nil, errors.Wrapf(err, "column %d", i+1)
		}
		row[i] = val
	}
	return row, nil
}

// decode converts the non-null wire bytes of one column into a Go value.
func (c *codec) decode(v *XSQLVAR, src []byte) (any, error) {
	switch v.BaseType() {
	case SQL_TEXT:
		b := src[:v.SQLLen]
		if isOctets(v) {
			return append([]byte(nil), b...), nil
		}
		return c.text.decode(b)

	case SQL_VARYING:
		n := int(binary.NativeEndian.Uint16(src[0:2]))
		if n > int(v.SQLLen) {
			n = int(v.SQLLen)
		}
		b := src[2 : 2+n]
		if isOctets(v) {
			return append([]byte(nil), b...), nil
		}
		return c.text.decode(b)

	case SQL_SHORT:
		return scaledInt(int64(int16(binary.NativeEndian.Uint16(src))), v.SQLScale)

	case SQL_LONG:
		return scaledInt(int64(int32(binary.NativeEndian.Uint32(src))), v.SQLScale)

	case SQL_INT64:
		return scaledInt(int64(binary.NativeEndian.Uint64(src)), v.SQLScale)

	case SQL_INT128:
		x := readInt128(src)
		if v.SQLScale < 0 {
			return scaledDecimal(x.String(), v.SQLScale)
		}
		return x.BigInt(), nil

	case SQL_FLOAT:
		return math.Float32frombits(binary.NativeEndian.Uint32(src)), nil

	case SQL_DOUBLE, SQL_D_FLOAT:
		return math.Float64frombits(binary.NativeEndian.Uint64(src)), nil

	case SQL_BOOLEAN:
		return src[0] != 0, nil

	case SQL_TYPE_DATE:
		return dateValue(int32(binary.NativeEndian.Uint32(src))), nil

	case SQL_TYPE_TIME:
		return timeValue(binary.NativeEndian.Uint32(src)), nil

	case SQL_TIMESTAMP:
		date := int32(binary.NativeEndian.Uint32(src[0:4]))
		tod := binary.NativeEndian.Uint32(src[4:8])
		return decodeTimestamp(date, tod, c.loc), nil

	case SQL_BLOB:
		data, err := c.readBlob(readQuad(src))
		if err != nil {
			return nil, err
		}
		if v.SQLSubtype == blobSubtypeText {
			return c.text.decode(data)
		}
		return data, nil

	case SQL_ARRAY:
		c.logger.Warn("ARRAY columns are not supported, returning nil",
			zap.String("column", v.Name()))
		return nil, nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "unsupported datatype (%d)", v.BaseType())
	}
}

// scaledInt passes plain integers through and turns fixed-point ones into decimals.
func scaledInt(n int64, scale int16) (any, error) {
	if scale < 0 {
		return scaledDecimal(strconv.FormatInt(n, 10), scale)
	}
	return n, nil
}
