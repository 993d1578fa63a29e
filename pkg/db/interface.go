package db

import "database/sql"

// DBProvider is implemented by PostgresClient and SupabaseClient. Stores that only need
// a sql.DB handle accept either.
type DBProvider interface {
	DB() *sql.DB
}

var (
	_ DBProvider = (*PostgresClient)(nil)
	_ DBProvider = (*SupabaseClient)(nil)
)
