package fb

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// firebirdCharsets maps Firebird character set names to IANA names.
var firebirdCharsets = map[string]string{
	"WIN1250":    "windows-1250",
	"WIN1251":    "windows-1251",
	"WIN1252":    "windows-1252",
	"WIN1253":    "windows-1253",
	"WIN1254":    "windows-1254",
	"WIN1255":    "windows-1255",
	"WIN1256":    "windows-1256",
	"WIN1257":    "windows-1257",
	"WIN1258":    "windows-1258",
	"ISO8859_1":  "ISO-8859-1",
	"ISO8859_2":  "ISO-8859-2",
	"ISO8859_3":  "ISO-8859-3",
	"ISO8859_4":  "ISO-8859-4",
	"ISO8859_5":  "ISO-8859-5",
	"ISO8859_6":  "ISO-8859-6",
	"ISO8859_7":  "ISO-8859-7",
	"ISO8859_8":  "ISO-8859-8",
	"ISO8859_9":  "ISO-8859-9",
	"ISO8859_13": "ISO-8859-13",
	"KOI8R":      "KOI8-R",
	"KOI8U":      "KOI8-U",
	"DOS437":     "IBM437",
	"DOS850":     "IBM850",
	"DOS852":     "IBM852",
	"DOS866":     "IBM866",
	"SJIS_0208":  "Shift_JIS",
	"EUCJ_0208":  "EUC-JP",
	"BIG_5":      "Big5",
	"GB_2312":    "GB2312",
	"GBK":        "GBK",
	"GB18030":    "GB18030",
}

// textEncoding converts between Go strings and the connection's text encoding.
// A nil encoding passes bytes through unchanged (UTF-8, NONE, OCTETS).
type textEncoding struct {
	name string
	enc  encoding.Encoding
}

// isPassthrough reports whether a name needs no transcoding.
func isPassthrough(name string) bool {
	switch strings.ToUpper(strings.ReplaceAll(name, "-", "")) {
	case "", "UTF8", "UNICODE_FSS", "NONE", "OCTETS", "ASCII", "BINARY":
		return true
	}
	return false
}

// newTextEncoding resolves an encoding name. Firebird charset names
// (WIN1252, ISO8859_1, ...) and IANA names (windows-1252, ...) are accepted.
func newTextEncoding(name string) (*textEncoding, error) {
	te := &textEncoding{name: name}
	if isPassthrough(name) {
		if te.name == "" {
			te.name = "UTF-8"
		}
		return te, nil
	}
	iana := name
	if mapped, ok := firebirdCharsets[strings.ToUpper(name)]; ok {
		iana = mapped
	}
	enc, err := ianaindex.IANA.Encoding(iana)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown text encoding %q", name)
	}
	if enc == nil {
		return nil, errors.Errorf("text encoding %q is not supported", name)
	}
	te.enc = enc
	return te, nil
}

// encodingForCharset picks the text encoding implied by a connection charset.
func encodingForCharset(charset string) string {
	if isPassthrough(charset) {
		return "UTF-8"
	}
	return charset
}

// Name returns the configured encoding name.
func (te *textEncoding) Name() string {
	return te.name
}

// encode converts a Go string into wire bytes.
func (te *textEncoding) encode(s string) ([]byte, error) {
	if te == nil || te.enc == nil {
		return []byte(s), nil
	}
	out, _, err := transform.Bytes(te.enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode text as %s", te.name)
	}
	return out, nil
}

// decode converts wire bytes into a Go string.
func (te *textEncoding) decode(b []byte) (string, error) {
	if te == nil || te.enc == nil {
		return string(b), nil
	}
	out, _, err := transform.Bytes(te.enc.NewDecoder(), b)
	if err != nil {
		return "", errors.Wrapf(err, "cannot decode %s text", te.name)
	}
	return string(out), nil
}
