package fb

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Database names a database and the settings used to attach to it.
type Database struct {
	cfg Config
	api clientAPI
}

// NewDatabase loads fbclient (cfg.LibraryPath, else the default library) and
// returns a Database for cfg.
func NewDatabase(cfg Config) (*Database, error) {
	var (
		client *Client
		err    error
	)
	if cfg.LibraryPath != "" {
		client, err = LoadClient(cfg.LibraryPath)
	} else {
		client, err = DefaultClient()
	}
	if err != nil {
		return nil, err
	}
	return NewDatabaseWithClient(client, cfg)
}

// NewDatabaseWithClient returns a Database that uses an already loaded client.
func NewDatabaseWithClient(client *Client, cfg Config) (*Database, error) {
	if client == nil {
		return nil, errors.New("nil fbclient")
	}
	return newDatabase(client, cfg)
}

func newDatabase(api clientAPI, cfg Config) (*Database, error) {
	if cfg.Database == "" {
		return nil, errors.New("database must be specified")
	}
	return &Database{cfg: cfg.withDefaults(), api: api}, nil
}

// Connect is shorthand for NewDatabase(cfg) followed by Connect.
func Connect(cfg Config) (*Connection, error) {
	db, err := NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return db.Connect()
}

// Config returns the settings with defaults applied.
func (d *Database) Config() Config {
	return d.cfg
}

// Connect attaches to the database.
func (d *Database) Connect() (*Connection, error) {
	var sv StatusVector
	var h DBHandle
	d.api.attachDatabase(&sv, d.cfg.Database, &h, d.cfg.dpb())
	if err := statusError(d.api, &sv, "isc_attach_database"); err != nil {
		return nil, err
	}
	conn, err := newConnection(d.api, h, d.cfg)
	if err != nil {
		d.api.detachDatabase(&sv, &h)
		warnStatus(d.api, &sv, "isc_detach_database", d.cfg.Logger)
		return nil, err
	}
	return conn, nil
}

// Create creates the database with the configured page size and default
// character set, and returns a connection attached to it.
func (d *Database) Create() (*Connection, error) {
	if !validPageSize(d.cfg.PageSize) {
		return nil, errors.Wrapf(ErrInvalidPageSize, "invalid page size: %d", d.cfg.PageSize)
	}
	var sv StatusVector
	var h DBHandle
	var tr TrHandle
	d.api.executeImmediate(&sv, &h, &tr, d.cfg.createStatement(), 3)
	if err := statusError(d.api, &sv, "isc_dsql_execute_immediate"); err != nil {
		return nil, err
	}
	if h == 0 {
		return nil, errors.Errorf("CREATE DATABASE %s returned no handle", d.cfg.Database)
	}
	d.cfg.Logger.Info("database created",
		zap.String("database", d.cfg.Database),
		zap.Int("page_size", d.cfg.PageSize),
		zap.String("charset", d.cfg.Charset))
	conn, err := newConnection(d.api, h, d.cfg)
	if err != nil {
		d.api.detachDatabase(&sv, &h)
		warnStatus(d.api, &sv, "isc_detach_database", d.cfg.Logger)
		return nil, err
	}
	return conn, nil
}

// Drop attaches to the database and deletes it.
func (d *Database) Drop() error {
	conn, err := d.Connect()
	if err != nil {
		return err
	}
	return conn.Drop()
}
