package fb

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SplitScript splits an SQL script into statements. Statements end with the
// current terminator, ";" by default, outside string literals, quoted
// identifiers and comments. "SET TERM <t>" lines change the terminator and
// are not returned.
func SplitScript(script string) []string {
	var stmts []string
	term := ";"
	start := 0
	for i := 0; i < len(script); {
		switch {
		case strings.HasPrefix(script[i:], "--"):
			if j := strings.IndexByte(script[i:], '\n'); j >= 0 {
				i += j + 1
			} else {
				i = len(script)
			}
			continue
		case strings.HasPrefix(script[i:], "/*"):
			if j := strings.Index(script[i+2:], "*/"); j >= 0 {
				i += j + 4
			} else {
				i = len(script)
			}
			continue
		case script[i] == '\'' || script[i] == '"':
			i = skipQuoted(script, i)
			continue
		case strings.HasPrefix(script[i:], term):
			stmt := strings.TrimSpace(script[start:i])
			i += len(term)
			start = i
			if t, ok := setTerm(stmt); ok {
				term = t
				continue
			}
			if stmt != "" && !onlyComments(stmt) {
				stmts = append(stmts, stmt)
			}
			continue
		}
		i++
	}
	if rest := strings.TrimSpace(script[start:]); rest != "" {
		if _, ok := setTerm(rest); !ok && !onlyComments(rest) {
			stmts = append(stmts, rest)
		}
	}
	return stmts
}

// skipQuoted returns the index just past the literal opening at i. A doubled
// quote inside the literal is an escaped quote.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// setTerm recognizes "SET TERM <terminator>".
func setTerm(stmt string) (string, bool) {
	var fields []string
	for _, line := range strings.Split(stmt, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			fields = append(fields, strings.Fields(line)...)
		}
	}
	if len(fields) != 3 || !strings.EqualFold(fields[0], "SET") || !strings.EqualFold(fields[1], "TERM") {
		return "", false
	}
	return fields[2], true
}

func onlyComments(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

// ExecuteScript runs every statement of script in one transaction, rolling
// back on the first failure. Inside an active transaction the statements
// simply run in it and the caller decides how it ends.
func (c *Connection) ExecuteScript(script string) error {
	stmts := SplitScript(script)
	run := func() error {
		for i, stmt := range stmts {
			res, err := c.Execute(stmt)
			if err != nil {
				return errors.Wrapf(err, "statement %d", i+1)
			}
			if res.Kind == ResultCursor {
				if err := res.Cursor.Drop(); err != nil {
					return err
				}
			}
		}
		return nil
	}
	c.logger.Debug("executing script", zap.Int("statements", len(stmts)))
	if c.TransactionStarted() {
		return run()
	}
	return c.Transaction("", run)
}
