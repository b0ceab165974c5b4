// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_create_calendars.sql") and are read from an fs.FS, usually an
// embedded directory. Applied versions are tracked in a schema_migrations
// table so each file runs at most once, inside its own transaction.
package migration
