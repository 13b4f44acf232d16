package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Amund211/serverstats/internal/config"
)

const DB_NAME = "serverstats"

const LOCAL_CONNECTION_STRING = "user=postgres password=postgres dbname=serverstats sslmode=disable"

const MAIN_SCHEMA = "serverstats"
const TESTING_SCHEMA = "serverstats_test"

// GetSchemaName keeps non-production deployments out of the production tables
func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}

// NewPostgresDatabase connects to the postgres server at connectionString and
// creates the serverstats database on it if it is missing
func NewPostgresDatabase(ctx context.Context, connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ensureDatabaseExists(ctx, db, DB_NAME); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return db, nil
}

// NewAdminDatabase connects to the database holding servers, users and stats
// bindings. Development falls back to a local postgres.
func NewAdminDatabase(ctx context.Context, conf config.Config) (*sqlx.DB, error) {
	connectionString := conf.DatabaseURL()
	if connectionString == "" && conf.IsDevelopment() {
		connectionString = LOCAL_CONNECTION_STRING
	}

	db, err := NewPostgresDatabase(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin database: %w", err)
	}

	return db, nil
}

func ensureDatabaseExists(ctx context.Context, db *sqlx.DB, dbName string) error {
	var exists bool
	err := db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName)
	if err != nil {
		return fmt.Errorf("failed to check if database %s exists: %w", dbName, err)
	}
	if exists {
		return nil
	}

	// CREATE DATABASE does not take bind parameters
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	if err != nil {
		return fmt.Errorf("failed to create database %s: %w", dbName, err)
	}

	return nil
}
