package database

import (
	"database/sql"
	"embed"
	"time"

	"naskah/pkg/logger"
	"naskah/pkg/migrations"

	_ "github.com/lib/pq"
)

//go:embed schema/*.sql
var schema embed.FS

// Connect opens the Postgres database, retrying the first ping a few times
// in case of temporary DNS/network blips, and brings the schema up to date.
func Connect(connStr string) *sql.DB {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open database connection: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Sugar.Infof("Database connection failed, retrying in 2s... (%v)", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Sugar.Fatal("Could not connect to database after retries.")
	}
	logger.Sugar.Info("Successfully connected to the database")

	if err := Migrate(db); err != nil {
		logger.Sugar.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	return migrations.MigrateUp(db, migrations.Postgres, schema, "schema")
}
