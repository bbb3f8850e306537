package db

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"EchoFM/config"
	"EchoFM/logger"
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to database",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return nil
}

// InitDB creates the catalog table if it does not exist.
func InitDB() error {
	query := `CREATE TABLE IF NOT EXISTS catalog_tracks (
		id VARCHAR(255) NOT NULL PRIMARY KEY,
		display_name VARCHAR(255) NOT NULL,
		stored_filename VARCHAR(255) NOT NULL,
		uploader VARCHAR(255) NOT NULL DEFAULT 'anonymous',
		size_bytes BIGINT NOT NULL DEFAULT 0,
		mime_type VARCHAR(127) NOT NULL DEFAULT '',
		converted TINYINT(1) NOT NULL DEFAULT 0,
		state VARCHAR(16) NOT NULL,
		uploaded_at TIMESTAMP NOT NULL,
		INDEX idx_state (state)
	)`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create catalog_tracks table: %w", err)
	}
	return nil
}

// CloseDB closes the connection pool.
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
