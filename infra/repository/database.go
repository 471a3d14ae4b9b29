package repository

import (
	"errors"
	"time"

	"github.com/finwire/backoffice/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDBConnection opens the postgres connection pool. Query logging is only
// enabled in development.
func NewDBConnection(cnf config.DBConfig, appEnv string) (*gorm.DB, error) {
	if cnf.Url == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	logMode := logger.Silent
	if appEnv == "development" {
		logMode = logger.Info
	}

	connection, err := gorm.Open(postgres.Open(cnf.Url), &gorm.Config{
		Logger:                 logger.Default.LogMode(logMode),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := connection.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return connection, nil
}

// AutoMigrate creates or updates the schema for every persistence model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&Commission{},
		&Limit{},
		&Operation{},
		&Transaction{},
		&OperationFee{},
		&ConfirmJob{},
	)
}
