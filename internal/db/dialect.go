package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// DayBucketExpr returns a SQL expression that formats a timestamp column as a
// YYYY-MM-DD day string after shifting it by offsetMinutes. Daily usage
// aggregation buckets on the billing-day boundary rather than UTC midnight.
func DayBucketExpr(conn *gorm.DB, column string, offsetMinutes int) string {
	if IsSQLite(conn) {
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', datetime(%s, '%+d minutes'))", column, offsetMinutes)
	}
	return fmt.Sprintf("to_char(%s + interval '%d minutes', 'YYYY-MM-DD')", column, offsetMinutes)
}
