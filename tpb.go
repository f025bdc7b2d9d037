package fb

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// maxTableName is the longest table name a RESERVING clause accepts.
const maxTableName = 31

// defaultTPB is the block a parsed option string starts from.
var defaultTPB = [4]byte{isc_tpb_version1, isc_tpb_write, isc_tpb_concurrency, isc_tpb_nowait}

// Fixed TPB positions an option may set once.
const (
	posReserving = iota
	posAccess
	posIsolation
	posWait
)

// TransactionOptions is the parsed form of a transaction option string such
// as "READ COMMITTED NO RECORD_VERSION WAIT" or
// "SNAPSHOT RESERVING A, B FOR SHARED READ".
type TransactionOptions struct {
	Access       byte // isc_tpb_read or isc_tpb_write, 0 keeps the default
	Isolation    byte // isc_tpb_consistency, isc_tpb_concurrency or isc_tpb_read_committed
	Wait         byte // isc_tpb_wait or isc_tpb_nowait
	Flags        []byte
	Reservations []Reservation
}

// Reservation is one "<tables> FOR {SHARED|PROTECTED} {READ|WRITE}" clause.
type Reservation struct {
	Tables []string
	Share  byte // isc_tpb_shared or isc_tpb_protected
	Lock   byte // isc_tpb_lock_read or isc_tpb_lock_write
}

// ParseTransactionOptions parses a case-insensitive option string.
func ParseTransactionOptions(s string) (*TransactionOptions, error) {
	p := &optionParser{toks: tokenizeOptions(s), opts: &TransactionOptions{}}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.opts, nil
}

// BuildTPB parses an option string and serializes it. An empty string yields a
// nil block, which lets the server apply its own defaults.
func BuildTPB(s string) ([]byte, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	opts, err := ParseTransactionOptions(s)
	if err != nil {
		return nil, err
	}
	return opts.TPB(), nil
}

// TPB serializes the options: the default block with fixed positions
// overridden, then flag bytes, then one record per reserved table.
func (o *TransactionOptions) TPB() []byte {
	base := defaultTPB
	if o.Access != 0 {
		base[posAccess] = o.Access
	}
	if o.Isolation != 0 {
		base[posIsolation] = o.Isolation
	}
	if o.Wait != 0 {
		base[posWait] = o.Wait
	}
	tpb := append([]byte(nil), base[:]...)
	tpb = append(tpb, o.Flags...)
	for _, r := range o.Reservations {
		for _, t := range r.Tables {
			tpb = append(tpb, r.Lock, byte(len(t)))
			tpb = append(tpb, t...)
			tpb = append(tpb, r.Share)
		}
	}
	return tpb
}

// tokenizeOptions upper-cases s and splits it on whitespace, keeping commas as
// tokens of their own.
func tokenizeOptions(s string) []string {
	var toks []string
	for _, word := range strings.FieldsFunc(strings.ToUpper(s), unicode.IsSpace) {
		for word != "" {
			i := strings.IndexByte(word, ',')
			if i < 0 {
				toks = append(toks, word)
				break
			}
			if i > 0 {
				toks = append(toks, word[:i])
			}
			toks = append(toks, ",")
			word = word[i+1:]
		}
	}
	return toks
}

type optionParser struct {
	toks []string
	pos  int
	set  [4]bool
	opts *TransactionOptions
}

func (p *optionParser) peek(n int) string {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return ""
}

// accept consumes the given words if they are next.
func (p *optionParser) accept(words ...string) bool {
	for i, w := range words {
		if p.peek(i) != w {
			return false
		}
	}
	p.pos += len(words)
	return true
}

func (p *optionParser) done() bool {
	return p.pos >= len(p.toks)
}

func illegalOption(msg string) error {
	return errors.Wrap(ErrIllegalTransactionOption, msg)
}

// setFixed writes a fixed-position byte, rejecting a second write.
func (p *optionParser) setFixed(pos int, val byte) error {
	if p.set[pos] {
		return ErrDuplicateTransactionOption
	}
	p.set[pos] = true
	switch pos {
	case posAccess:
		p.opts.Access = val
	case posIsolation:
		p.opts.Isolation = val
	case posWait:
		p.opts.Wait = val
	}
	return nil
}

// parse handles the top level:
//
//	READ {WRITE | ONLY | COMMITTED rcom}
//	WAIT | NO WAIT
//	ISOLATION LEVEL {SNAPSHOT snap | READ COMMITTED rcom}
//	SNAPSHOT snap
//	RESERVING tables FOR mode [, tables FOR mode]...
func (p *optionParser) parse() error {
	if p.done() {
		return illegalOption("empty transaction option")
	}
	for !p.done() {
		var err error
		switch {
		case p.accept("READ"):
			err = p.parseRead()
		case p.accept("WAIT"):
			err = p.setFixed(posWait, isc_tpb_wait)
		case p.accept("NO", "WAIT"):
			err = p.setFixed(posWait, isc_tpb_nowait)
		case p.accept("ISOLATION", "LEVEL"):
			err = p.parseIsolation()
		case p.accept("SNAPSHOT"):
			err = p.parseSnapshot()
		case p.accept("RESERVING"):
			err = p.parseReserving()
		default:
			err = illegalOption(p.peek(0))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *optionParser) parseRead() error {
	switch {
	case p.accept("WRITE"):
		return p.setFixed(posAccess, isc_tpb_write)
	case p.accept("ONLY"):
		return p.setFixed(posAccess, isc_tpb_read)
	case p.accept("COMMITTED"):
		if err := p.setFixed(posIsolation, isc_tpb_read_committed); err != nil {
			return err
		}
		return p.parseRecordVersion()
	default:
		return illegalOption("READ " + p.peek(0))
	}
}

// parseRecordVersion handles the optional tail of READ COMMITTED, which
// defaults to NO RECORD_VERSION.
func (p *optionParser) parseRecordVersion() error {
	switch {
	case p.accept("NO", "RECORD_VERSION"):
		p.opts.Flags = append(p.opts.Flags, isc_tpb_no_rec_version)
	case p.accept("RECORD_VERSION"):
		p.opts.Flags = append(p.opts.Flags, isc_tpb_rec_version)
	default:
		p.opts.Flags = append(p.opts.Flags, isc_tpb_no_rec_version)
	}
	return nil
}

func (p *optionParser) parseIsolation() error {
	switch {
	case p.accept("SNAPSHOT"):
		return p.parseSnapshot()
	case p.accept("READ", "COMMITTED"):
		if err := p.setFixed(posIsolation, isc_tpb_read_committed); err != nil {
			return err
		}
		return p.parseRecordVersion()
	default:
		return illegalOption("ISOLATION LEVEL " + p.peek(0))
	}
}

func (p *optionParser) parseSnapshot() error {
	if p.accept("TABLE", "STABILITY") {
		return p.setFixed(posIsolation, isc_tpb_consistency)
	}
	return p.setFixed(posIsolation, isc_tpb_concurrency)
}

// parseReserving reads one or more comma-separated clauses. Names are
// gathered first; the share and lock modes that follow FOR apply to every
// table named in that clause.
func (p *optionParser) parseReserving() error {
	if p.set[posReserving] {
		return ErrDuplicateTransactionOption
	}
	p.set[posReserving] = true

	if p.done() || p.peek(0) == "FOR" {
		return illegalOption("RESERVING needs table name list")
	}
	for {
		var r Reservation
		for {
			if p.done() {
				return illegalOption("RESERVING clause without FOR")
			}
			tok := p.toks[p.pos]
			p.pos++
			if tok == "FOR" {
				break
			}
			if tok == "," {
				continue
			}
			if len(tok) > maxTableName {
				return illegalOption("Illegal table name was specified")
			}
			r.Tables = append(r.Tables, tok)
		}

		switch {
		case p.accept("SHARED"):
			r.Share = isc_tpb_shared
		case p.accept("PROTECTED"):
			r.Share = isc_tpb_protected
		default:
			return illegalOption("RESERVING needs {SHARED|PROTECTED} {READ|WRITE}")
		}
		switch {
		case p.accept("READ"):
			r.Lock = isc_tpb_lock_read
		case p.accept("WRITE"):
			r.Lock = isc_tpb_lock_write
		default:
			return illegalOption("RESERVING needs {SHARED|PROTECTED} {READ|WRITE}")
		}
		p.opts.Reservations = append(p.opts.Reservations, r)

		if !p.accept(",") {
			return nil
		}
		if p.done() {
			return illegalOption("Unexpected end of command")
		}
	}
}
