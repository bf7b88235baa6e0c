package db

import (
	"dashboard-auth/config"
	"dashboard-auth/logger"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ConnString builds the lib/pq connection string for the configured database.
func ConnString(withPassword bool) string {
	cfg := config.AppConfig.Database
	if !withPassword {
		return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Name)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
}

func Connect() (*sql.DB, error) {
	logger.Log.WithField("connection", ConnString(false)).Info("Attempting to connect to the database")

	db, err := sql.Open("postgres", ConnString(true))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to open database connection")
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Log.WithError(err).WithField("attempt", i+1).Warn("Database not ready yet")
		time.Sleep(time.Second)
	}
	if err != nil {
		logger.Log.WithError(err).Error("Failed to ping database")
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Log.Info("Database connection established successfully")
	return db, nil
}
