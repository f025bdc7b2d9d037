package fb

import (
	"database/sql/driver"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Kind tags the shape of a parameter Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindDecimal
	KindFloat
	KindString
	KindDateTime
	KindBytes
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInteger:
		return "Integer"
	case KindDecimal:
		return "Decimal"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindDateTime:
		return "DateTime"
	case KindBytes:
		return "Bytes"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a parameter normalized into one of a closed set of shapes. Only the
// field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   *big.Int
	Dec   decimal.Decimal
	Float float64
	Str   string
	Time  time.Time
	Bytes []byte
}

// Constructors for each Value kind.
func NullValue() Value                     { return Value{Kind: KindNull} }
func BoolValue(b bool) Value               { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value               { return Value{Kind: KindInteger, Int: big.NewInt(i)} }
func BigIntValue(i *big.Int) Value         { return Value{Kind: KindInteger, Int: i} }
func DecimalValue(d decimal.Decimal) Value { return Value{Kind: KindDecimal, Dec: d} }
func FloatValue(f float64) Value           { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value           { return Value{Kind: KindString, Str: s} }
func TimeValue(t time.Time) Value          { return Value{Kind: KindDateTime, Time: t} }
func BytesValue(b []byte) Value            { return Value{Kind: KindBytes, Bytes: b} }

// valueOf normalizes a Go value into a Value.
func valueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return v, nil
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint:
		return BigIntValue(new(big.Int).SetUint64(uint64(v))), nil
	case uint8:
		return IntValue(int64(v)), nil
	case uint16:
		return IntValue(int64(v)), nil
	case uint32:
		return IntValue(int64(v)), nil
	case uint64:
		return BigIntValue(new(big.Int).SetUint64(v)), nil
	case *big.Int:
		if v == nil {
			return NullValue(), nil
		}
		return BigIntValue(v), nil
	case big.Int:
		return BigIntValue(&v), nil
	case decimal.Decimal:
		return DecimalValue(v), nil
	case decimal.NullDecimal:
		if !v.Valid {
			return NullValue(), nil
		}
		return DecimalValue(v.Decimal), nil
	case float32:
		return FloatValue(float64(v)), nil
	case float64:
		return FloatValue(v), nil
	case string:
		return StringValue(v), nil
	case []byte:
		if v == nil {
			return NullValue(), nil
		}
		return BytesValue(v), nil
	case time.Time:
		return TimeValue(v), nil
	case *time.Time:
		if v == nil {
			return NullValue(), nil
		}
		return TimeValue(*v), nil
	case uuid.UUID:
		b := make([]byte, len(v))
		copy(b, v[:])
		return BytesValue(b), nil
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return Value{}, err
		}
		if _, again := dv.(driver.Valuer); again {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "%T", x)
		}
		return valueOf(dv)
	case fmt.Stringer:
		return StringValue(v.String()), nil
	}
	return reflectValueOf(x)
}

// reflectValueOf handles named types over the basic kinds and pointers.
func reflectValueOf(x any) (Value, error) {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return NullValue(), nil
		}
		return valueOf(rv.Elem().Interface())
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return BigIntValue(new(big.Int).SetUint64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), nil
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return BytesValue(rv.Bytes()), nil
		}
	}
	return Value{}, errors.Wrapf(ErrUnsupportedType, "%T", x)
}

// =============================================================================
// Coercions used by the per-type encoders
// =============================================================================

// toDecimal coerces numeric and string values into an exact decimal.
func (v Value) toDecimal() (decimal.Decimal, error) {
	switch v.Kind {
	case KindInteger:
		return decimal.NewFromBigInt(v.Int, 0), nil
	case KindDecimal:
		return v.Dec, nil
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return decimal.Decimal{}, errors.Wrapf(ErrOverflow, "%v is not a finite number", v.Float)
		}
		return decimal.NewFromFloat(v.Float), nil
	case KindString:
		d, err := decimal.NewFromString(strings.TrimSpace(v.Str))
		if err != nil {
			return decimal.Decimal{}, errors.Wrapf(err, "invalid numeric value %q", v.Str)
		}
		return d, nil
	case KindDateTime:
		return decimal.Decimal{}, errors.Wrap(ErrUnsupportedType, "time value not allowed as a number")
	default:
		return decimal.Decimal{}, errors.Wrapf(ErrUnsupportedType, "%s value not allowed as a number", v.Kind)
	}
}

// scaledInteger returns the unscaled integer stored for a column with the
// given scale: value * 10^-scale, rounded half away from zero.
func (v Value) scaledInteger(scale int16) (*big.Int, error) {
	d, err := v.toDecimal()
	if err != nil {
		return nil, err
	}
	if scale < 0 {
		d = d.Shift(int32(-scale))
	}
	return d.Round(0).BigInt(), nil
}

// toFloat coerces numeric and string values into a float64.
func (v Value) toFloat() (float64, error) {
	switch v.Kind {
	case KindFloat:
		return v.Float, nil
	case KindInteger:
		f, _ := new(big.Float).SetInt(v.Int).Float64()
		return f, nil
	case KindDecimal:
		f, _ := v.Dec.Float64()
		return f, nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid float value %q", v.Str)
		}
		return f, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedType, "%s value not allowed as a float", v.Kind)
	}
}

// toText renders any non-null value the way it is stored in a text column.
func (v Value) toText() (string, []byte) {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool), nil
	case KindInteger:
		return v.Int.String(), nil
	case KindDecimal:
		return v.Dec.String(), nil
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case KindString:
		return v.Str, nil
	case KindDateTime:
		return v.Time.Format("2006-01-02 15:04:05.9999"), nil
	case KindBytes:
		return "", v.Bytes
	}
	return "", nil
}

// toBool coerces a value for a BOOLEAN column.
func (v Value) toBool() (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.Bool, nil
	case KindInteger:
		return v.Int.Sign() != 0, nil
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
		if err != nil {
			return false, errors.Wrapf(err, "invalid boolean value %q", v.Str)
		}
		return b, nil
	default:
		return false, errors.Wrapf(ErrUnsupportedType, "%s value not allowed as a boolean", v.Kind)
	}
}

// timeLayouts are accepted when a string is bound to a date or time column.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04:05.999999999",
	"15:04",
}

// toTime coerces a value for a DATE, TIME or TIMESTAMP column. Strings are
// parsed in loc.
func (v Value) toTime(loc *time.Location) (time.Time, error) {
	switch v.Kind {
	case KindDateTime:
		return v.Time, nil
	case KindString:
		s := strings.TrimSpace(v.Str)
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, errors.Errorf("invalid date/time value %q", v.Str)
	default:
		return time.Time{}, errors.Wrapf(ErrUnsupportedType, "expecting time or string, got %s", v.Kind)
	}
}
