package fb

import (
	"encoding/binary"
	"math/big"
	"math/bits"
	"strings"

	"github.com/pkg/errors"
)

// int128 is a two's-complement 128-bit integer as stored by INT128 columns.
type int128 struct {
	hi uint64
	lo uint64
}

// Magnitude limits: 2^127 for negative values, 2^127-1 for positive ones.
var (
	int128NegLimit = int128{hi: 1 << 63}
	int128PosLimit = int128{hi: 1<<63 - 1, lo: ^uint64(0)}
)

func (x int128) less(y int128) bool {
	return x.hi < y.hi || (x.hi == y.hi && x.lo < y.lo)
}

// mulAdd returns x*10+d on the unsigned magnitude, and whether it wrapped.
func (x int128) mulAdd(d uint64) (int128, bool) {
	hiHi, hiLo := bits.Mul64(x.hi, 10)
	loHi, loLo := bits.Mul64(x.lo, 10)
	hi, carry := bits.Add64(hiLo, loHi, 0)
	wrapped := hiHi != 0 || carry != 0
	lo, carry := bits.Add64(loLo, d, 0)
	hi, carry = bits.Add64(hi, 0, carry)
	return int128{hi: hi, lo: lo}, wrapped || carry != 0
}

func (x int128) negate() int128 {
	lo, borrow := bits.Sub64(0, x.lo, 0)
	hi, _ := bits.Sub64(0, x.hi, borrow)
	return int128{hi: hi, lo: lo}
}

func (x int128) negative() bool {
	return x.hi>>63 != 0
}

// parseInt128 accumulates the decimal digits of s into an unsigned magnitude,
// failing with ErrOverflow as soon as it exceeds the signed 128-bit range.
func parseInt128(s string) (int128, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return int128{}, errors.New("invalid INT128 value")
	}

	limit := int128PosLimit
	if neg {
		limit = int128NegLimit
	}
	var mag int128
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return int128{}, errors.Errorf("invalid INT128 value %q", s)
		}
		var wrapped bool
		mag, wrapped = mag.mulAdd(uint64(c - '0'))
		if wrapped || limit.less(mag) {
			return int128{}, errors.Wrap(ErrOverflow, "INT128 overflow")
		}
	}
	if neg {
		return mag.negate(), nil
	}
	return mag, nil
}

// String renders the value in decimal.
func (x int128) String() string {
	neg := x.negative()
	mag := x
	if neg {
		mag = x.negate()
	}
	if mag.hi == 0 && mag.lo == 0 {
		return "0"
	}
	var digits [40]byte
	i := len(digits)
	for mag.hi != 0 || mag.lo != 0 {
		var r uint64
		mag.hi, r = bits.Div64(0, mag.hi, 10)
		mag.lo, r = bits.Div64(r, mag.lo, 10)
		i--
		digits[i] = byte('0' + r)
	}
	if neg {
		i--
		digits[i] = '-'
	}
	return string(digits[i:])
}

// BigInt converts to an arbitrary-precision integer.
func (x int128) BigInt() *big.Int {
	n, _ := new(big.Int).SetString(x.String(), 10)
	return n
}

// put stores x little-endian in b[:16].
func (x int128) put(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], x.lo)
	binary.LittleEndian.PutUint64(b[8:16], x.hi)
}

// readInt128 loads a little-endian value from b[:16].
func readInt128(b []byte) int128 {
	return int128{
		lo: binary.LittleEndian.Uint64(b[0:8]),
		hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}
