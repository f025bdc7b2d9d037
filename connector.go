package fb

import (
	"context"
	"database/sql/driver"
	"time"

	"go.uber.org/zap"
)

// Connector implements driver.Connector for efficient connection pooling
type Connector struct {
	db     *Database
	driver *Driver

	// TransactionOptions configures transactions started by BeginTx with the
	// default isolation level, e.g. "READ COMMITTED NO WAIT". Empty leaves the
	// choice to the server.
	TransactionOptions string
}

// ConnectorOption configures a Connector
type ConnectorOption func(*connectorSettings)

type connectorSettings struct {
	cfg       Config
	txOptions string
}

// WithLogger sets the logger used by every connection
func WithLogger(logger *zap.Logger) ConnectorOption {
	return func(s *connectorSettings) {
		s.cfg.Logger = logger
	}
}

// WithTimezone sets the zone TIMESTAMP values are read and written in
func WithTimezone(tz *time.Location) ConnectorOption {
	return func(s *connectorSettings) {
		s.cfg.Timezone = tz
	}
}

// WithDowncaseNames lowercases all-uppercase column names
func WithDowncaseNames(downcase bool) ConnectorOption {
	return func(s *connectorSettings) {
		s.cfg.DowncaseNames = downcase
	}
}

// WithEncoding overrides the text encoding derived from the character set
func WithEncoding(name string) ConnectorOption {
	return func(s *connectorSettings) {
		s.cfg.Encoding = name
	}
}

// WithTransactionOptions sets the option string for BeginTx with the default
// isolation level
func WithTransactionOptions(options string) ConnectorOption {
	return func(s *connectorSettings) {
		s.txOptions = options
	}
}

// NewConnector loads the client library and returns a Connector for cfg,
// usable with sql.OpenDB.
func NewConnector(cfg Config, opts ...ConnectorOption) (*Connector, error) {
	s := connectorSettings{cfg: cfg}
	for _, opt := range opts {
		opt(&s)
	}
	if _, err := BuildTPB(s.txOptions); err != nil {
		return nil, err
	}
	db, err := NewDatabase(s.cfg)
	if err != nil {
		return nil, err
	}
	return &Connector{db: db, driver: &Driver{}, TransactionOptions: s.txOptions}, nil
}

// newConnectorWithClient builds a Connector over an already loaded client.
func newConnectorWithClient(api clientAPI, cfg Config) (*Connector, error) {
	db, err := newDatabase(api, cfg)
	if err != nil {
		return nil, err
	}
	return &Connector{db: db, driver: &Driver{}}, nil
}

// Connect establishes a new connection to the database
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.db.Connect()
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn, txOptions: c.TransactionOptions}, nil
}

// Driver returns the underlying Driver
func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// Ensure Connector implements driver.Connector
var _ driver.Connector = (*Connector)(nil)
