package fb

// vaxInteger decodes the little-endian integers used in info responses.
func vaxInteger(b []byte) int64 {
	var v int64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | int64(b[i])
	}
	if len(b) == 4 {
		return int64(int32(v))
	}
	return v
}

// infoItem is one clumplet of an info response: item code and value bytes.
type infoItem struct {
	code  byte
	value []byte
}

// parseInfo walks an info response of the form {item, len(2), value}... until
// isc_info_end, stopping early on a truncated or malformed buffer.
func parseInfo(buf []byte) []infoItem {
	var items []infoItem
	for p := 0; p < len(buf); {
		code := buf[p]
		if code == isc_info_end || code == isc_info_truncated || p+3 > len(buf) {
			break
		}
		n := int(vaxInteger(buf[p+1 : p+3]))
		p += 3
		if n < 0 || p+n > len(buf) {
			break
		}
		items = append(items, infoItem{code: code, value: buf[p : p+n]})
		p += n
	}
	return items
}

// infoValue returns the integer value of item code in buf, if present.
func infoValue(buf []byte, code byte) (int64, bool) {
	for _, it := range parseInfo(buf) {
		if it.code == code {
			return vaxInteger(it.value), true
		}
	}
	return 0, false
}
