package fb

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

var dialectInfoItems = []byte{isc_info_db_sql_dialect, isc_info_end}

// Connection is one attachment to a database. It owns the database and
// transaction handles and every Cursor it hands out.
//
// A Connection is not safe for concurrent use.
type Connection struct {
	api    clientAPI
	db     DBHandle
	tr     TrHandle
	status StatusVector

	database      string
	dialect       uint16
	dbDialect     uint16
	downcaseNames bool
	text          *textEncoding
	loc           *time.Location
	logger        *zap.Logger

	cursors []*Cursor
}

// newConnection wraps an attached handle. The SQL dialect used for statements
// is the lower of the configured one and the database's own.
func newConnection(api clientAPI, db DBHandle, cfg Config) (*Connection, error) {
	text, err := newTextEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	c := &Connection{
		api:           api,
		db:            db,
		database:      cfg.Database,
		downcaseNames: cfg.DowncaseNames,
		text:          text,
		loc:           cfg.Timezone,
		logger:        cfg.Logger.With(zap.String("database", cfg.Database)),
	}
	dbDialect, err := c.queryDialect()
	if err != nil {
		return nil, err
	}
	c.dbDialect = dbDialect
	c.dialect = uint16(cfg.Dialect)
	if c.dbDialect < c.dialect {
		c.dialect = c.dbDialect
	}
	c.logger.Debug("attached",
		zap.Uint16("dialect", c.dialect),
		zap.Uint16("db_dialect", c.dbDialect),
		zap.String("encoding", text.Name()))
	return c, nil
}

// queryDialect reads the database's SQL dialect, assuming 1 when the server
// does not report it.
func (c *Connection) queryDialect() (uint16, error) {
	buf := make([]byte, 16)
	c.api.databaseInfo(&c.status, &c.db, dialectInfoItems, buf)
	if err := c.statusErr("isc_database_info"); err != nil {
		return 0, err
	}
	if v, ok := infoValue(buf, isc_info_db_sql_dialect); ok {
		return uint16(v), nil
	}
	return 1, nil
}

func (c *Connection) check() error {
	if c.db == 0 {
		return ErrConnectionClosed
	}
	return nil
}

func (c *Connection) statusErr(op string) error {
	return statusError(c.api, &c.status, op)
}

func (c *Connection) codec() *codec {
	return &codec{
		api:    c.api,
		db:     &c.db,
		tr:     &c.tr,
		status: &c.status,
		text:   c.text,
		loc:    c.loc,
		logger: c.logger,
	}
}

// String returns a short description of the connection
func (c *Connection) String() string {
	return fmt.Sprintf("Connection(%s, dialect %d, open=%t)", c.database, c.dialect, c.IsOpen())
}

// IsOpen reports whether the connection is still attached.
func (c *Connection) IsOpen() bool {
	return c.db != 0
}

// Database returns the database the connection is attached to.
func (c *Connection) Database() string {
	return c.database
}

// Dialect returns the SQL dialect statements are prepared with.
func (c *Connection) Dialect() int {
	return int(c.dialect)
}

// DBDialect returns the SQL dialect of the database itself.
func (c *Connection) DBDialect() int {
	return int(c.dbDialect)
}

// Encoding returns the name of the text encoding.
func (c *Connection) Encoding() string {
	return c.text.Name()
}

// =============================================================================
// Cursors
// =============================================================================

// Cursor allocates a statement handle and returns a cursor over it.
func (c *Connection) Cursor() (*Cursor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	cur := newCursor(c)
	c.api.allocateStatement(&c.status, &c.db, &cur.stmt)
	if err := c.statusErr("isc_dsql_alloc_statement2"); err != nil {
		return nil, err
	}
	c.track(cur)
	return cur, nil
}

// track records cur in the first free slot.
func (c *Connection) track(cur *Cursor) {
	for i, slot := range c.cursors {
		if slot == nil {
			cur.index = i
			c.cursors[i] = cur
			return
		}
	}
	cur.index = len(c.cursors)
	c.cursors = append(c.cursors, cur)
}

// forget frees the slot of a dropped cursor.
func (c *Connection) forget(cur *Cursor) {
	if cur.index < len(c.cursors) && c.cursors[cur.index] == cur {
		c.cursors[cur.index] = nil
	}
}

// closeCursors closes every cursor, logging failures. When a cursor ends its
// own automatic transaction it passes itself as skip, and the other cursors
// only lose their open result sets so their prepared statements survive.
func (c *Connection) closeCursors(skip *Cursor) {
	for _, cur := range c.cursors {
		if cur == nil || cur == skip {
			continue
		}
		var err error
		if skip != nil {
			err = cur.closeResult()
		} else {
			err = cur.close(false)
		}
		if err != nil {
			c.logger.Warn("closing cursor", zap.String("sql", cur.sql), zap.Error(err))
		}
	}
}

// dropCursors drops every cursor and empties the collection.
func (c *Connection) dropCursors() error {
	var errs Errors
	for _, cur := range c.cursors {
		if cur == nil {
			continue
		}
		if err := cur.drop(); err != nil {
			errs = append(errs, err)
		}
	}
	c.cursors = nil
	return errs.Err()
}

// =============================================================================
// Transactions
// =============================================================================

// TransactionStarted reports whether a transaction is active.
func (c *Connection) TransactionStarted() bool {
	return c.tr != 0
}

// StartTransaction starts a transaction configured by an option string such
// as "READ COMMITTED NO WAIT" or "SNAPSHOT RESERVING T FOR PROTECTED WRITE".
// An empty string leaves the choice to the server.
func (c *Connection) StartTransaction(options string) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.tr != 0 {
		return ErrTransactionAlreadyStarted
	}
	tpb, err := BuildTPB(options)
	if err != nil {
		return err
	}
	return c.begin(tpb)
}

// begin starts a transaction with a ready-made TPB.
func (c *Connection) begin(tpb []byte) error {
	if c.tr != 0 {
		return ErrTransactionAlreadyStarted
	}
	c.api.startTransaction(&c.status, &c.tr, &c.db, tpb)
	if err := c.statusErr("isc_start_multiple"); err != nil {
		c.tr = 0
		return err
	}
	c.logger.Debug("transaction started", zap.Uint32("handle", uint32(c.tr)))
	return nil
}

// Commit commits the active transaction after closing every cursor. It does
// nothing when no transaction is active.
func (c *Connection) Commit() error {
	if err := c.check(); err != nil {
		return err
	}
	return c.finish(true, nil)
}

// Rollback rolls back the active transaction after closing every cursor. It
// does nothing when no transaction is active.
func (c *Connection) Rollback() error {
	if err := c.check(); err != nil {
		return err
	}
	return c.finish(false, nil)
}

// finish ends the active transaction. Cursors other than skip are closed
// first; skip is the cursor ending its own automatic transaction.
func (c *Connection) finish(commit bool, skip *Cursor) error {
	if c.tr == 0 {
		return nil
	}
	c.closeCursors(skip)
	op := "isc_rollback_transaction"
	if commit {
		op = "isc_commit_transaction"
		c.api.commitTransaction(&c.status, &c.tr)
	} else {
		c.api.rollbackTransaction(&c.status, &c.tr)
	}
	if err := c.statusErr(op); err != nil {
		return err
	}
	c.tr = 0
	c.logger.Debug("transaction finished", zap.Bool("commit", commit))
	return nil
}

// Transaction runs fn inside a new transaction. The transaction is committed
// when fn returns nil and rolled back otherwise; fn's error is returned.
func (c *Connection) Transaction(options string, fn func() error) error {
	if err := c.StartTransaction(options); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rerr := c.Rollback(); rerr != nil {
			return Errors{err, rerr}
		}
		return err
	}
	return c.Commit()
}

// =============================================================================
// One-shot statements
// =============================================================================

// Execute runs sql on a fresh cursor. For a SELECT the open cursor is returned
// in the result and the caller closes it; otherwise the cursor is dropped.
func (c *Connection) Execute(sql string, args ...any) (*Result, error) {
	cur, err := c.Cursor()
	if err != nil {
		return nil, err
	}
	res, err := cur.Execute(sql, args...)
	if err != nil {
		if derr := cur.Drop(); derr != nil {
			c.logger.Warn("dropping cursor", zap.Error(derr))
		}
		return nil, err
	}
	if res.Kind == ResultCursor {
		return res, nil
	}
	if err := cur.Drop(); err != nil {
		return nil, err
	}
	return res, nil
}

// Query runs sql and fetches every row. A statement that does not produce a
// result set yields its RETURNING row, if any.
func (c *Connection) Query(sql string, args ...any) ([]Row, error) {
	res, err := c.Execute(sql, args...)
	if err != nil {
		return nil, err
	}
	switch res.Kind {
	case ResultCursor:
		cur := res.Cursor
		rows, err := cur.FetchAll()
		if derr := cur.Drop(); err == nil {
			err = derr
		}
		return rows, err
	case ResultReturning:
		if len(res.Returning) > 0 {
			return []Row{res.Returning}, nil
		}
	}
	return nil, nil
}

// QueryMaps is Query with rows keyed by field name.
func (c *Connection) QueryMaps(sql string, args ...any) ([]map[string]any, error) {
	res, err := c.Execute(sql, args...)
	if err != nil {
		return nil, err
	}
	if res.Kind != ResultCursor {
		return nil, nil
	}
	cur := res.Cursor
	rows, err := cur.FetchAllMaps()
	if derr := cur.Drop(); err == nil {
		err = derr
	}
	return rows, err
}

// =============================================================================
// Teardown
// =============================================================================

// Close commits an active transaction, drops every cursor and detaches.
// Closing a closed connection does nothing.
func (c *Connection) Close() error {
	if c.db == 0 {
		return nil
	}
	return c.disconnect(false)
}

// Drop deletes the attached database and closes the connection. When the
// server refuses the drop the connection stays attached and Close detaches it.
func (c *Connection) Drop() error {
	if err := c.check(); err != nil {
		return err
	}
	return c.disconnect(true)
}

func (c *Connection) disconnect(drop bool) error {
	var errs Errors
	if err := c.finish(true, nil); err != nil {
		errs = append(errs, err)
	}
	if err := c.dropCursors(); err != nil {
		errs = append(errs, err)
	}
	if drop {
		c.api.dropDatabase(&c.status, &c.db)
		if err := c.statusErr("isc_drop_database"); err != nil {
			return append(errs, err).Err()
		}
	} else {
		c.api.detachDatabase(&c.status, &c.db)
		if err := c.statusErr("isc_detach_database"); err != nil {
			return append(errs, err).Err()
		}
	}
	c.db = 0
	c.tr = 0
	c.logger.Debug("detached", zap.Bool("dropped", drop))
	return errs.Err()
}
