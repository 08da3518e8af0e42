package database

import (
	"fmt"
	"log"
	"materials-erp/config"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDB opens the database selected by DB_DRIVER.
func ConnectDB() (*gorm.DB, error) {
	dialector, err := getDialector(config.DBDriver, config.DBName)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, gormConfig(config.DBLogLevel))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", config.DBDriver, err)
	}
	if config.DBDriver == "sqlite" {
		if err := singleWriter(db); err != nil {
			return nil, err
		}
	}
	log.Printf("Connected to %s database %s", config.DBDriver, config.DBName)
	return db, nil
}

// OpenSQLite opens a file-backed sqlite database with one connection, so
// writers queue instead of failing with "database is locked".
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig("silent"))
	if err != nil {
		return nil, err
	}
	return db, singleWriter(db)
}

func singleWriter(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	return nil
}

func gormConfig(level string) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(level)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)"
}

func getDialector(driver, dbName string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			config.DBHost, config.DBUser, config.DBPassword, dbName, config.DBPort)
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			config.DBUser, config.DBPassword, config.DBHost, config.DBPort, dbName)
		return mysql.Open(dsn), nil
	case "mssql", "sqlserver":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			config.DBUser, config.DBPassword, config.DBHost, config.DBPort, dbName)
		return sqlserver.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(sqliteDSN(dbName)), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER: %s", driver)
}

// EnsureDatabaseExists creates the application database on a fresh server.
func EnsureDatabaseExists(dbName string) error {
	var dialector gorm.Dialector
	switch config.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=postgres port=%s sslmode=disable",
			config.DBHost, config.DBUser, config.DBPassword, config.DBPort)
		dialector = postgres.Open(dsn)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/?charset=utf8mb4&parseTime=True&loc=Local",
			config.DBUser, config.DBPassword, config.DBHost, config.DBPort)
		dialector = mysql.Open(dsn)
	case "mssql", "sqlserver":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=master",
			config.DBUser, config.DBPassword, config.DBHost, config.DBPort)
		dialector = sqlserver.Open(dsn)
	default:
		return nil
	}

	db, err := gorm.Open(dialector, gormConfig(config.DBLogLevel))
	if err != nil {
		return fmt.Errorf("connect to DB server: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	exists, err := checkDatabaseExists(db, dbName)
	if err != nil || exists {
		return err
	}
	return db.Exec("CREATE DATABASE " + dbName).Error
}

func checkDatabaseExists(db *gorm.DB, dbName string) (bool, error) {
	var n int64
	var err error
	switch config.DBDriver {
	case "postgres":
		err = db.Raw("SELECT COUNT(*) FROM pg_database WHERE datname = ?", dbName).Scan(&n).Error
	case "mysql":
		err = db.Raw("SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?", dbName).Scan(&n).Error
	default:
		err = db.Raw("SELECT COUNT(*) FROM master.sys.databases WHERE name = ?", dbName).Scan(&n).Error
	}
	return n > 0, err
}
