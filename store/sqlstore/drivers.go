package sqlstore

import (
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Registered database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var flavors = map[string]sqlbuilder.Flavor{
	DriverSQLite:   sqlbuilder.SQLite,
	DriverPostgres: sqlbuilder.PostgreSQL,
	DriverMySQL:    sqlbuilder.MySQL,
}

// FlavorFor returns the statement flavor matching a driver name.
func FlavorFor(driver string) (sqlbuilder.Flavor, error) {
	f, ok := flavors[driver]
	if !ok {
		return 0, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	return f, nil
}
