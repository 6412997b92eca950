package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"csv_stream_backend/config"
	"csv_stream_backend/models"
	"csv_stream_backend/pkg/logging"
)

type DB struct {
	database *gorm.DB
}

// DSN builds the libpq connection string for the job archive.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=prefer TimeZone=UTC",
		cfg.Host,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.Port,
	)
}

func InitPostgres(cfg *config.Config) (*DB, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		logging.Logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		logging.Logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logging.Logger.Info("connected to postgres", "host", cfg.Host, "db", cfg.DBName)
	return &DB{database: db}, nil
}
func (db *DB) AutoMigrate() error {
	if err := db.database.AutoMigrate(&models.JobRecord{}); err != nil {
		logging.Logger.Error("auto migration failed", "error", err)
		return err
	}
	return nil
}
func (db *DB) Close() error {
	sqlDB, err := db.database.DB()
	if err != nil {
		logging.Logger.Error("failed to connect to database", "error", err)
		return err
	}
	return sqlDB.Close()
}
func (db *DB) GetDatabase() *gorm.DB {
	return db.database
}
func (db *DB) Ping() error {
	sqlDB, err := db.database.DB()
	if err != nil {
		logging.Logger.Error("failed to connect to database", "error", err)
		return err
	}
	return sqlDB.Ping()
}
