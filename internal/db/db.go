// internal/db/db.go
package db

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// Connect opens and pings a postgres connection. Callers own the handle;
// there is no package-level instance.
func Connect(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
