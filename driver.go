package fb

import (
	"context"
	"database/sql"
	"database/sql/driver"
)

func init() {
	sql.Register("firebird", &Driver{})
}

// Driver implements the database/sql/driver.Driver interface
type Driver struct{}

// Open opens a new connection to the database
// The name is a DSN accepted by ParseDSN, e.g.:
//   - "database=localhost:/var/lib/firebird/data/employee.fdb"
//   - "database=localhost/3050:employee;user=SYSDBA;password=masterkey;charset=UTF8"
func (d *Driver) Open(name string) (driver.Conn, error) {
	connector, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector returns a new Connector for the given DSN
// This implements driver.DriverContext so the client library is loaded once per pool
func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	cfg, err := ParseDSN(name)
	if err != nil {
		return nil, err
	}
	connector, err := NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	connector.driver = d
	return connector, nil
}

// Ensure Driver implements the required interfaces
var (
	_ driver.Driver        = (*Driver)(nil)
	_ driver.DriverContext = (*Driver)(nil)
)
