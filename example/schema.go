package example

import (
	"context"
	"reflect"

	"github.com/CaliLuke/go-dtograph/store/sqlstore"
)

// Schema creates the tables of the domain. The DDL is portable across
// SQLite, PostgreSQL and MySQL.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id      VARCHAR(64) PRIMARY KEY,
		name    VARCHAR(255) NOT NULL,
		head_id VARCHAR(64)
	)`,
	`CREATE TABLE IF NOT EXISTS people (
		id            VARCHAR(64) PRIMARY KEY,
		first_name    VARCHAR(255) NOT NULL,
		last_name     VARCHAR(255) NOT NULL,
		email         VARCHAR(255),
		department_id VARCHAR(64),
		account_ref   VARCHAR(64)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id       VARCHAR(64) PRIMARY KEY,
		title    VARCHAR(255) NOT NULL,
		done     BOOLEAN NOT NULL DEFAULT FALSE,
		owner_id VARCHAR(64)
	)`,
}

// Tables maps the entities onto Schema.
func Tables() []sqlstore.Table {
	return []sqlstore.Table{
		sqlstore.TableFor[Department]("departments").
			WithRef("head", "headID").
			WithCollection("members", reflect.TypeOf((*Person)(nil)).Elem(), "department"),
		sqlstore.TableFor[Person]("people").
			WithRef("department", "departmentID").
			WithCollection("tasks", reflect.TypeOf((*Task)(nil)).Elem(), "owner"),
		sqlstore.TableFor[Task]("tasks").
			WithRef("owner", "ownerID"),
	}
}

// OpenStore opens the database at dsn through driver and creates the schema.
func OpenStore(ctx context.Context, driver, dsn string, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	s, err := sqlstore.Open(driver, dsn, Tables(), opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx, Schema...); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
