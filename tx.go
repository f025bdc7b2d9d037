package fb

import (
	"database/sql/driver"
)

// Tx implements driver.Tx for transaction support
type Tx struct {
	conn *Conn
}

// Commit commits the transaction.
// Statements prepared on the connection are released and prepared again on
// their next execution.
func (t *Tx) Commit() error {
	return t.end(true)
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.end(false)
}

func (t *Tx) end(commit bool) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()

	if !t.conn.inTx {
		return nil // Already committed or rolled back
	}
	t.conn.inTx = false
	if t.conn.closed {
		return driver.ErrBadConn
	}

	if commit {
		return t.conn.conn.Commit()
	}
	return t.conn.conn.Rollback()
}

// Ensure Tx implements driver.Tx
var _ driver.Tx = (*Tx)(nil)
