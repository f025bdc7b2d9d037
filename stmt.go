package fb

import (
	"context"
	"database/sql/driver"
	"sync"
)

// Stmt implements driver.Stmt over a prepared Cursor
type Stmt struct {
	conn     *Conn
	cursor   *Cursor
	query    string
	named    *NamedParams
	numInput int
	mu       sync.Mutex
	closed   bool
}

// Close drops the statement handle
func (s *Stmt) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.conn.closed {
		return nil
	}
	return s.cursor.Drop()
}

// NumInput returns the number of placeholder parameters, or -1 for named ones
func (s *Stmt) NumInput() int {
	return s.numInput
}

// Exec executes a prepared statement (deprecated, use ExecContext)
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

// ExecContext executes a prepared statement with context support
func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	res, err := s.run(ctx, args)
	if err != nil {
		return nil, err
	}
	if res.Kind == ResultCursor {
		s.conn.mu.Lock()
		err := s.cursor.closeRows()
		s.conn.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	return &execResult{rowsAffected: res.RowsAffected}, nil
}

// Query executes a prepared query (deprecated, use QueryContext)
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

// QueryContext executes a prepared query with context support
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	res, err := s.run(ctx, args)
	if err != nil {
		return nil, err
	}
	// The statement keeps its cursor; rows only end the result set.
	return newRows(s.conn, s.cursor, res, false), nil
}

// run executes the statement, preparing it again if a transaction boundary
// released it since the last run.
func (s *Stmt) run(ctx context.Context, args []driver.NamedValue) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrCursorDropped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, err := s.bindParams(args)
	if err != nil {
		return nil, err
	}

	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.conn.closed {
		return nil, driver.ErrBadConn
	}
	if !s.cursor.Prepared() {
		return s.cursor.Execute(s.query, values...)
	}
	return s.cursor.Exec(values...)
}

// bindParams orders args to match the statement's placeholders
func (s *Stmt) bindParams(args []driver.NamedValue) ([]any, error) {
	if s.named != nil {
		return s.named.Bind(args)
	}
	if hasNames(args) {
		return nil, &ParameterError{Name: args[0].Name, Message: "statement has no named parameters"}
	}
	return positional(args), nil
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		named[i] = driver.NamedValue{
			Ordinal: i + 1,
			Value:   arg,
		}
	}
	return named
}

// Ensure Stmt implements the required interfaces
var (
	_ driver.Stmt             = (*Stmt)(nil)
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)
