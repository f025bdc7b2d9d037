package fb

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Row is one fetched row, ordered like the result columns.
type Row []any

// Cursor owns one statement handle with its descriptors and row buffers.
//
// A cursor moves through prepared, open (after a SELECT), end of data and
// closed states. A closed cursor can be executed again; a dropped one cannot.
type Cursor struct {
	conn  *Connection
	index int // slot in conn.cursors

	stmt     StmtHandle
	dropped  bool
	prepared bool
	open     bool
	eof      bool

	// autoTr is the transaction this cursor started on its own, if any.
	autoTr TrHandle

	sql        string
	serverKind StatementType
	kind       StatementType
	returning  bool

	in, out     *SQLDA
	inLayout    rowLayout
	outLayout   rowLayout
	inBuf       rowBuffer
	outBuf      rowBuffer
	fields      []Field
	fieldsByKey map[string]Field
}

func newCursor(conn *Connection) *Cursor {
	return &Cursor{
		conn: conn,
		in:   NewSQLDA(defaultColumnCapacity),
		out:  NewSQLDA(defaultColumnCapacity),
	}
}

// =============================================================================
// State checks
// =============================================================================

func (c *Cursor) usable() error {
	if c.dropped {
		return ErrCursorDropped
	}
	return c.conn.check()
}

func (c *Cursor) fetchable() error {
	if err := c.usable(); err != nil {
		return err
	}
	if !c.open {
		return errors.Wrap(ErrCursorClosed, "the cursor has not been opened, execute a query first")
	}
	return nil
}

// Prepared reports whether a statement is prepared on the cursor.
func (c *Cursor) Prepared() bool {
	return c.prepared
}

// IsOpen reports whether the cursor holds an open result set.
func (c *Cursor) IsOpen() bool {
	return c.open
}

// SQL returns the statement text last prepared.
func (c *Cursor) SQL() string {
	return c.sql
}

// StatementType returns the statement kind used for rows-affected accounting.
func (c *Cursor) StatementType() StatementType {
	return c.kind
}

// NumInput returns the number of parameters the prepared statement takes.
func (c *Cursor) NumInput() int {
	return c.in.Len()
}

// NumColumns returns the number of output columns of the prepared statement.
func (c *Cursor) NumColumns() int {
	return c.out.Len()
}

// =============================================================================
// Prepare / execute
// =============================================================================

// Prepare compiles sql on the cursor so it can be run with Exec any number of
// times. The transaction used for preparing is committed right away unless one
// was already active.
func (c *Cursor) Prepare(sql string) error {
	if err := c.usable(); err != nil {
		return err
	}
	if err := c.closeResult(); err != nil {
		return err
	}
	_, err := c.inTransaction(func() (*Result, error) {
		return nil, c.prepare(sql)
	})
	return err
}

// Execute prepares and runs sql with positional args. A SELECT leaves the
// cursor open and returns a ResultCursor; DML returns the rows affected; DML
// with RETURNING returns the row it produced.
//
// When args is a single [][]any, or every arg is a []any, a statement without
// output columns runs once per inner slice.
func (c *Cursor) Execute(sql string, args ...any) (*Result, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if err := c.closeResult(); err != nil {
		return nil, err
	}
	return c.inTransaction(func() (*Result, error) {
		if err := c.prepare(sql); err != nil {
			return nil, err
		}
		return c.run(args)
	})
}

// Exec runs the prepared statement again with new args.
func (c *Cursor) Exec(args ...any) (*Result, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if !c.prepared {
		return nil, errors.Wrap(ErrCursorClosed, "no statement has been prepared")
	}
	if err := c.closeResult(); err != nil {
		return nil, err
	}
	return c.inTransaction(func() (*Result, error) {
		return c.run(args)
	})
}

// inTransaction runs fn inside the connection's transaction, starting one
// owned by this cursor when none is active. An owned transaction is rolled
// back when fn fails and committed unless fn left a result set open; an open
// result set's transaction is committed by Close.
func (c *Cursor) inTransaction(fn func() (*Result, error)) (*Result, error) {
	conn := c.conn
	if conn.tr == 0 {
		if err := conn.begin(nil); err != nil {
			return nil, err
		}
		c.autoTr = conn.tr
	}
	if !c.ownsTransaction() {
		return fn()
	}

	res, err := fn()
	if err != nil {
		if cerr := c.closeResult(); cerr != nil {
			conn.logger.Warn("closing cursor after failure", zap.Error(cerr))
		}
		c.autoTr = 0
		if rerr := conn.finish(false, c); rerr != nil {
			conn.logger.Warn("rolling back automatic transaction", zap.Error(rerr))
		}
		return nil, err
	}
	if res == nil || res.Kind != ResultCursor {
		c.autoTr = 0
		if err := conn.finish(true, c); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (c *Cursor) ownsTransaction() bool {
	return c.autoTr != 0 && c.autoTr == c.conn.tr
}

// prepare compiles sql, describes both descriptors and sizes the buffers.
func (c *Cursor) prepare(sql string) error {
	conn := c.conn
	api := conn.api
	if c.stmt == 0 {
		api.allocateStatement(&conn.status, &conn.db, &c.stmt)
		if err := conn.statusErr("isc_dsql_alloc_statement2"); err != nil {
			return err
		}
	}
	c.prepared = false
	c.fields, c.fieldsByKey = nil, nil

	api.prepare(&conn.status, &conn.tr, &c.stmt, sql, conn.dialect, c.out)
	if err := conn.statusErr("isc_dsql_prepare"); err != nil {
		return err
	}
	if c.out.NeedsGrow() {
		c.out = NewSQLDA(c.out.Len())
		api.describe(&conn.status, &c.stmt, c.out)
		if err := conn.statusErr("isc_dsql_describe"); err != nil {
			return err
		}
	}

	kind, err := c.statementType()
	if err != nil {
		return err
	}
	if kind.isTransactionControl() {
		return errors.Wrapf(ErrTransactionStatement, "%s", kind)
	}

	err = describeInto(&c.in, func(d *SQLDA) error {
		api.describeBind(&conn.status, &c.stmt, d)
		return conn.statusErr("isc_dsql_describe_bind")
	})
	if err != nil {
		return err
	}

	c.sql = sql
	c.serverKind = kind
	c.kind = kind
	c.returning = hasReturning(sql)
	if !kind.isDML() && c.returning {
		if lk := leadingKind(sql); lk.isDML() {
			c.kind = lk
		}
	}

	c.inLayout = computeLayout(c.in.Vars())
	c.inBuf.grow(c.inLayout.size)
	c.outLayout = computeLayout(c.out.Vars())
	c.outBuf.grow(c.outLayout.size)
	c.outLayout.wire(c.out.Vars(), &c.outBuf)

	c.prepared = true
	conn.logger.Debug("prepared statement",
		zap.String("type", c.kind.String()),
		zap.Int("params", c.in.Len()),
		zap.Int("columns", c.out.Len()))
	return nil
}

// statementType asks the server what kind of statement was prepared.
func (c *Cursor) statementType() (StatementType, error) {
	conn := c.conn
	buf := make([]byte, 16)
	conn.api.sqlInfo(&conn.status, &c.stmt, stmtTypeItems, buf)
	if err := conn.statusErr("isc_dsql_sql_info"); err != nil {
		return StmtUnknown, err
	}
	v, _ := infoValue(buf, isc_info_sql_stmt_type)
	return StatementType(v), nil
}

// rowsAffected reads the statement's record counters.
func (c *Cursor) rowsAffected() (int64, error) {
	conn := c.conn
	buf := make([]byte, 64)
	conn.api.sqlInfo(&conn.status, &c.stmt, stmtRecordsItems, buf)
	if err := conn.statusErr("isc_dsql_sql_info"); err != nil {
		return 0, err
	}
	return parseRecordCounts(buf).affected(c.kind), nil
}

// inputDA returns the input descriptor, or nil for a statement without parameters.
func (c *Cursor) inputDA() *SQLDA {
	if c.in.Len() == 0 {
		return nil
	}
	return c.in
}

func (c *Cursor) bind(cd *codec, args []any) error {
	return cd.encodeParams(c.in.Vars(), c.inLayout, &c.inBuf, args)
}

// run executes the prepared statement and shapes the result.
func (c *Cursor) run(args []any) (*Result, error) {
	conn := c.conn
	api := conn.api
	cd := conn.codec()
	outCols := c.out.Len()

	switch {
	case outCols > 0 && c.returning && c.kind.isDML(), outCols > 0 && c.kind == StmtExecProc:
		if err := c.bind(cd, args); err != nil {
			return nil, err
		}
		api.execute2(&conn.status, &conn.tr, &c.stmt, c.inputDA(), c.out)
		if err := conn.statusErr("isc_dsql_execute2"); err != nil {
			return nil, err
		}
		n, err := c.rowsAffected()
		if err != nil {
			return nil, err
		}
		c.fields = describeFields(c.out.Vars(), conn.downcaseNames)
		c.fieldsByKey = fieldMap(c.fields)
		res := &Result{Kind: ResultReturning, RowsAffected: n, Returning: Row{}}
		// An unmatched UPDATE or DELETE leaves the output buffer untouched.
		if n > 0 || c.kind == StmtExecProc {
			row, err := cd.decodeRow(c.out.Vars(), c.outLayout, c.outBuf.bytes)
			if err != nil {
				return nil, err
			}
			res.Returning = row
		}
		return res, nil

	case outCols == 0:
		batch := batchRows(args)
		if batch == nil {
			batch = [][]any{args}
		}
		var total int64
		for _, row := range batch {
			if err := c.bind(cd, row); err != nil {
				return nil, err
			}
			api.execute2(&conn.status, &conn.tr, &c.stmt, c.inputDA(), nil)
			if err := conn.statusErr("isc_dsql_execute2"); err != nil {
				return nil, err
			}
			n, err := c.rowsAffected()
			if err != nil {
				return nil, err
			}
			total += n
		}
		return &Result{Kind: ResultRowsAffected, RowsAffected: total}, nil

	default:
		if err := c.bind(cd, args); err != nil {
			return nil, err
		}
		api.execute2(&conn.status, &conn.tr, &c.stmt, c.inputDA(), nil)
		if err := conn.statusErr("isc_dsql_execute2"); err != nil {
			return nil, err
		}
		c.open = true
		c.eof = false
		c.fields = describeFields(c.out.Vars(), conn.downcaseNames)
		c.fieldsByKey = fieldMap(c.fields)
		return &Result{Kind: ResultCursor, Cursor: c}, nil
	}
}

// batchRows recognizes the batch forms of Execute's args: a single [][]any, or
// args that are all []any. It returns nil for an ordinary parameter list.
func batchRows(args []any) [][]any {
	if len(args) == 0 {
		return nil
	}
	if len(args) == 1 {
		if rows, ok := args[0].([][]any); ok {
			return rows
		}
	}
	rows := make([][]any, len(args))
	for i, a := range args {
		row, ok := a.([]any)
		if !ok {
			return nil
		}
		rows[i] = row
	}
	return rows
}

// =============================================================================
// Fetch
// =============================================================================

// Fetch returns the next row, or nil once the result set is exhausted.
// Fetching again after that fails with ErrCursorClosed.
func (c *Cursor) Fetch() (Row, error) {
	if err := c.fetchable(); err != nil {
		return nil, err
	}
	if c.eof {
		return nil, errors.Wrap(ErrCursorClosed, "cursor is past end of data")
	}
	conn := c.conn
	ret := conn.api.fetch(&conn.status, &c.stmt, c.out)
	if ret == fetchNoMoreRows {
		c.eof = true
		return nil, nil
	}
	if err := conn.statusErr("isc_dsql_fetch"); err != nil {
		return nil, err
	}
	return conn.codec().decodeRow(c.out.Vars(), c.outLayout, c.outBuf.bytes)
}

// FetchMap is Fetch keyed by field name.
func (c *Cursor) FetchMap() (map[string]any, error) {
	row, err := c.Fetch()
	if err != nil || row == nil {
		return nil, err
	}
	return c.rowMap(row), nil
}

// FetchAll fetches every remaining row.
func (c *Cursor) FetchAll() ([]Row, error) {
	var rows []Row
	err := c.Each(func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	return rows, err
}

// FetchAllMaps fetches every remaining row keyed by field name.
func (c *Cursor) FetchAllMaps() ([]map[string]any, error) {
	var rows []map[string]any
	err := c.EachMap(func(m map[string]any) error {
		rows = append(rows, m)
		return nil
	})
	return rows, err
}

// Each calls fn for every remaining row without holding the result set in
// memory. It stops at the first error fn returns.
func (c *Cursor) Each(fn func(Row) error) error {
	for {
		row, err := c.Fetch()
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// EachMap is Each with rows keyed by field name.
func (c *Cursor) EachMap(fn func(map[string]any) error) error {
	return c.Each(func(r Row) error {
		return fn(c.rowMap(r))
	})
}

func (c *Cursor) rowMap(row Row) map[string]any {
	m := make(map[string]any, len(row))
	for i, f := range c.fields {
		if i < len(row) {
			m[f.Name] = row[i]
		}
	}
	return m
}

// Fields returns the metadata of the open result set's columns.
func (c *Cursor) Fields() []Field {
	return c.fields
}

// FieldMap returns the result set's column metadata keyed by name.
func (c *Cursor) FieldMap() map[string]Field {
	return c.fieldsByKey
}

// =============================================================================
// Close / drop
// =============================================================================

// closeResult closes an open result set, keeping the statement prepared.
func (c *Cursor) closeResult() error {
	if !c.open {
		return nil
	}
	conn := c.conn
	c.open = false
	c.eof = false
	conn.api.freeStatement(&conn.status, &c.stmt, DSQL_close)
	return conn.statusErr("isc_dsql_free_statement")
}

// closeRows ends an open result set but keeps the statement prepared. A
// transaction the cursor started is committed.
func (c *Cursor) closeRows() error {
	err := c.closeResult()
	if c.ownsTransaction() {
		c.autoTr = 0
		if cerr := c.conn.finish(true, c); err == nil {
			err = cerr
		}
	}
	return err
}

// Close closes the result set and releases the prepared statement, keeping
// the handle for reuse. A transaction the cursor started is committed.
// Closing a closed cursor does nothing.
func (c *Cursor) Close() error {
	return c.close(true)
}

// close does the work of Close. The connection passes commit=false when it
// closes cursors on its way to ending the transaction itself.
func (c *Cursor) close(commit bool) error {
	if c.dropped || c.stmt == 0 {
		c.fields, c.fieldsByKey = nil, nil
		return nil
	}
	conn := c.conn
	if c.open {
		c.open = false
		c.eof = false
		var sv StatusVector
		conn.api.freeStatement(&sv, &c.stmt, DSQL_close)
		warnStatus(conn.api, &sv, "isc_dsql_free_statement", conn.logger)
	}
	if c.prepared {
		c.prepared = false
		conn.api.freeStatement(&conn.status, &c.stmt, DSQL_unprepare)
		if err := conn.statusErr("isc_dsql_free_statement"); err != nil {
			return err
		}
	}
	c.fields, c.fieldsByKey = nil, nil
	if commit && c.ownsTransaction() {
		c.autoTr = 0
		return conn.finish(true, c)
	}
	if !commit {
		c.autoTr = 0
	}
	return nil
}

// Drop frees the statement handle for good and detaches the cursor from its
// connection. A transaction the cursor started is committed.
func (c *Cursor) Drop() error {
	if c.dropped {
		return nil
	}
	err := c.drop()
	if c.ownsTransaction() {
		c.autoTr = 0
		if cerr := c.conn.finish(true, c); err == nil {
			err = cerr
		}
	}
	c.conn.forget(c)
	return err
}

// drop frees the handle and buffers without touching the transaction.
func (c *Cursor) drop() error {
	conn := c.conn
	var errs Errors
	if c.open && c.stmt != 0 {
		conn.api.freeStatement(&conn.status, &c.stmt, DSQL_close)
		if err := conn.statusErr("isc_dsql_free_statement"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.stmt != 0 && conn.db != 0 {
		conn.api.freeStatement(&conn.status, &c.stmt, DSQL_drop)
		if err := conn.statusErr("isc_dsql_free_statement"); err != nil {
			errs = append(errs, err)
		}
	}
	c.stmt = 0
	c.dropped = true
	c.prepared = false
	c.open = false
	c.fields, c.fieldsByKey = nil, nil
	c.inBuf.release()
	c.outBuf.release()
	return errs.Err()
}
