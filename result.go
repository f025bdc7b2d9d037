package fb

import (
	"database/sql/driver"

	"github.com/pkg/errors"
)

// ResultKind tells what executing a statement produced.
type ResultKind int

const (
	// ResultCursor means the cursor holds an open result set to fetch from.
	ResultCursor ResultKind = iota
	// ResultRowsAffected carries the number of rows a statement changed.
	ResultRowsAffected
	// ResultReturning carries the row of a RETURNING clause or procedure outputs.
	ResultReturning
)

func (k ResultKind) String() string {
	switch k {
	case ResultCursor:
		return "cursor"
	case ResultRowsAffected:
		return "rows affected"
	case ResultReturning:
		return "returning"
	}
	return "unknown"
}

// Result is the outcome of Cursor.Execute and Connection.Execute.
type Result struct {
	Kind ResultKind

	// RowsAffected is set for ResultRowsAffected and ResultReturning. Batch
	// executions report the sum over every row.
	RowsAffected int64

	// Returning holds the RETURNING row, or the output parameters of an
	// executed procedure. It is empty when an UPDATE or DELETE matched nothing.
	Returning Row

	// Cursor is set for ResultCursor.
	Cursor *Cursor
}

// execResult implements driver.Result for statements run through database/sql
type execResult struct {
	rowsAffected int64
}

// LastInsertId is not available from Firebird; use INSERT ... RETURNING.
func (r *execResult) LastInsertId() (int64, error) {
	return 0, errors.New("LastInsertId is not supported, use INSERT ... RETURNING")
}

// RowsAffected returns the number of rows affected by the statement
func (r *execResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// Ensure execResult implements driver.Result
var _ driver.Result = (*execResult)(nil)
