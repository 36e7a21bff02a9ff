package data

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")

	// ErrNotFound is returned when an assessment does not exist.
	ErrNotFound = errors.New("assessment not found")
)

type dialect struct {
	driver string
	ddl    string
}

var dialects = map[string]dialect{
	DriverSQLite:   {driver: "sqlite", ddl: "sql/sqlite.sql"},
	DriverPostgres: {driver: "postgres", ddl: "sql/postgres.sql"},
}

// rebind rewrites ? placeholders into $n for postgres.
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open connects to the history database and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("dsn not specified")
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.driver == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b, err := f.ReadFile(d.ddl)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read the schema creation file: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	slog.Debug("history store ready", "driver", driver)

	return &SQLStore{db: db, dialect: d}, nil
}
