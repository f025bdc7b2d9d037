package fb

import (
	"context"
	"database/sql/driver"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const pingQuery = "SELECT 1 FROM RDB$DATABASE"

// Conn implements driver.Conn over a Connection
type Conn struct {
	conn      *Connection
	txOptions string
	inTx      bool
	mu        sync.Mutex
	closed    bool
}

// Prepare prepares a statement for execution
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext prepares a statement with context support
func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	named := ParseNamedParams(query)
	sql := query
	if named != nil {
		sql = named.Query
	}

	cursor, err := c.conn.Cursor()
	if err != nil {
		return nil, err
	}
	if err := cursor.Prepare(sql); err != nil {
		if derr := cursor.Drop(); derr != nil {
			c.conn.logger.Warn("dropping cursor", zap.Error(derr))
		}
		return nil, err
	}

	// database/sql counts the args it receives, which differs from the
	// placeholder count once a name is used twice.
	numInput := cursor.NumInput()
	if named != nil {
		numInput = -1
	}

	return &Stmt{
		conn:     c,
		cursor:   cursor,
		query:    sql,
		named:    named,
		numInput: numInput,
	}, nil
}

// Close closes the connection, committing an active transaction
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.inTx = false
	return c.conn.Close()
}

// Begin starts a new transaction (deprecated, use BeginTx)
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx starts a new transaction with context and options
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.inTx {
		return nil, ErrTransactionAlreadyStarted
	}

	options, err := txOptionString(opts, c.txOptions)
	if err != nil {
		return nil, err
	}
	if err := c.conn.StartTransaction(options); err != nil {
		return nil, err
	}

	c.inTx = true
	return &Tx{conn: c}, nil
}

// txOptionString maps database/sql isolation levels onto Firebird options.
// The default level keeps the connector's configured options.
func txOptionString(opts driver.TxOptions, defaults string) (string, error) {
	var isolation string
	switch driver.IsolationLevel(opts.Isolation) {
	case driver.IsolationLevel(0): // LevelDefault
		if !opts.ReadOnly {
			return defaults, nil
		}
	case driver.IsolationLevel(1), driver.IsolationLevel(2): // LevelReadUncommitted, LevelReadCommitted
		isolation = "READ COMMITTED RECORD_VERSION"
	case driver.IsolationLevel(4), driver.IsolationLevel(5): // LevelRepeatableRead, LevelSnapshot
		isolation = "SNAPSHOT"
	case driver.IsolationLevel(6), driver.IsolationLevel(7): // LevelSerializable, LevelLinearizable
		isolation = "SNAPSHOT TABLE STABILITY"
	default:
		return "", errors.Errorf("unsupported isolation level: %d", opts.Isolation)
	}
	access := "READ WRITE"
	if opts.ReadOnly {
		access = "READ ONLY"
	}
	if isolation == "" {
		return access, nil
	}
	return access + " " + isolation, nil
}

// Ping verifies the connection is still alive
func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.conn.IsOpen() {
		return driver.ErrBadConn
	}

	if _, err := c.conn.Query(pingQuery); err != nil {
		if IsConnectionError(err) {
			return driver.ErrBadConn
		}
		return err
	}
	return nil
}

// ExecContext executes a query without returning rows
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sql, values, err := bindArgs(query, args)
	if err != nil {
		return nil, err
	}
	res, err := c.conn.Execute(sql, values...)
	if err != nil {
		return nil, err
	}
	if res.Kind == ResultCursor {
		if err := res.Cursor.Drop(); err != nil {
			return nil, err
		}
	}
	return &execResult{rowsAffected: res.RowsAffected}, nil
}

// QueryContext executes a query that returns rows
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sql, values, err := bindArgs(query, args)
	if err != nil {
		return nil, err
	}
	cursor, err := c.conn.Cursor()
	if err != nil {
		return nil, err
	}
	res, err := cursor.Execute(sql, values...)
	if err != nil {
		if derr := cursor.Drop(); derr != nil {
			c.conn.logger.Warn("dropping cursor", zap.Error(derr))
		}
		return nil, err
	}
	// dropCursor=true since the rows own the cursor
	return newRows(c, cursor, res, true), nil
}

// bindArgs rewrites named placeholders and orders args to match.
func bindArgs(query string, args []driver.NamedValue) (string, []any, error) {
	if !hasNames(args) {
		return query, positional(args), nil
	}
	named := ParseNamedParams(query)
	if named == nil {
		return "", nil, &ParameterError{Name: args[0].Name, Message: "query has no named parameters"}
	}
	values, err := named.Bind(args)
	if err != nil {
		return "", nil, err
	}
	return named.Query, values, nil
}

func hasNames(args []driver.NamedValue) bool {
	for _, a := range args {
		if a.Name != "" {
			return true
		}
	}
	return false
}

func positional(args []driver.NamedValue) []any {
	values := make([]any, len(args))
	for _, a := range args {
		values[a.Ordinal-1] = a.Value
	}
	return values
}

// ResetSession is called before a connection is reused
func (c *Conn) ResetSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.conn.IsOpen() {
		return driver.ErrBadConn
	}

	// If still in a transaction, the connection is in a bad state
	if c.inTx {
		return driver.ErrBadConn
	}

	return nil
}

// IsValid returns true if the connection is valid
func (c *Conn) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn.IsOpen()
}

// CheckNamedValue passes through every value the parameter encoder accepts,
// leaving the rest to the default converter
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	if _, err := valueOf(nv.Value); err != nil {
		return driver.ErrSkip
	}
	return nil
}

// Connection returns the underlying Connection, e.g. from sql.Conn.Raw
func (c *Conn) Connection() *Connection {
	return c.conn
}

// Ensure Conn implements the required interfaces
var (
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
)
