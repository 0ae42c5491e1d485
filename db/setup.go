package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mindmap-dev/mindmap/internal/config"
	"github.com/mindmap-dev/mindmap/internal/models"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// Registers the "mysql" driver for the administrative connection.
	_ "github.com/go-sql-driver/mysql"
)

const (
	charset   = "utf8mb4"
	collation = "utf8mb4_unicode_ci"
)

var validDatabaseName = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// Bootstrap creates the database if needed, opens the connection pool and
// brings the schema up to date. It must complete before any request is
// served; every error it returns is fatal to startup.
func Bootstrap(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	if err := EnsureDatabase(ctx, cfg.AdminDSN(), cfg.Name); err != nil {
		return nil, err
	}

	log.Infof("Database %s is ready", cfg.Name)

	conn, err := Open(gormmysql.Open(cfg.DSN()), cfg.PoolSize, log)

	if err != nil {
		return nil, err
	}

	if err := MigrateDatabase(conn, log); err != nil {
		return nil, err
	}

	return conn, nil
}

// EnsureDatabase connects without selecting a database and creates name if
// it does not exist.
func EnsureDatabase(ctx context.Context, adminDSN, name string) error {
	admin, err := sql.Open("mysql", adminDSN)

	if err != nil {
		return fmt.Errorf("failed to open administrative connection: %w", err)
	}

	defer admin.Close()

	if err := admin.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach database server: %w", err)
	}

	return createDatabase(ctx, admin, name)
}

func createDatabase(ctx context.Context, admin *sql.DB, name string) error {
	if !validDatabaseName.MatchString(name) {
		return fmt.Errorf("invalid database name %q", name)
	}

	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET %s COLLATE %s", name, charset, collation)

	if _, err := admin.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}

	return nil
}

// Open opens a pooled GORM handle. Driver errors are translated so that
// unique violations surface as gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, poolSize int, log *logrus.Logger) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := conn.DB()

	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize)

	return conn, nil
}

// MigrateDatabase creates missing tables and reconciles the constellations
// table with the canonical schema.
func MigrateDatabase(conn *gorm.DB, log *logrus.Logger) error {
	models := []interface{}{
		&models.User{},
		&models.Report{},
		&models.Constellation{},
	}

	migrator := conn.Migrator()

	for _, model := range models {
		if !migrator.HasTable(model) {
			if err := conn.AutoMigrate(model); err != nil {
				return err
			}
		}
	}

	reconcileConstellations(conn, log)

	return nil
}

// reconcileConstellations upgrades tables created by older deployments: the
// key column used to be called constellation_id and constellation_data did
// not exist. Failures are logged and do not block startup.
func reconcileConstellations(conn *gorm.DB, log *logrus.Logger) {
	migrator := conn.Migrator()
	model := &models.Constellation{}

	// HasColumn is a substring match on some dialects, so constellation_id
	// would satisfy a check for id. Compare exact names instead.
	columns, err := columnSet(migrator, model)
	if err != nil {
		log.Warnf("Failed to inspect constellations columns: %v", err)
		return
	}

	if columns["constellation_id"] && !columns["id"] {
		if err := migrator.RenameColumn(model, "constellation_id", "id"); err != nil {
			log.Warnf("Failed to rename constellations.constellation_id to id: %v", err)
		} else {
			log.Info("Renamed constellations.constellation_id to id")
		}
	}

	if !columns["constellation_data"] {
		if err := migrator.AddColumn(model, "ConstellationData"); err != nil {
			log.Warnf("Failed to add constellations.constellation_data: %v", err)
		} else {
			log.Info("Added constellations.constellation_data")
		}
	}

	// Rows written before the column existed carry NULL. Store a JSON null so
	// every row holds a document.
	result := conn.Model(model).Where("constellation_data IS NULL").Update("constellation_data", "null")

	if result.Error != nil {
		log.Warnf("Failed to backfill constellations.constellation_data: %v", result.Error)
	} else if result.RowsAffected > 0 {
		log.Infof("Backfilled constellation_data on %d legacy constellations", result.RowsAffected)
	}
}

// columnSet returns the lowercased column names of model's table.
func columnSet(migrator gorm.Migrator, model interface{}) (map[string]bool, error) {
	columnTypes, err := migrator.ColumnTypes(model)
	if err != nil {
		return nil, err
	}

	columns := make(map[string]bool, len(columnTypes))
	for _, ct := range columnTypes {
		columns[strings.ToLower(ct.Name())] = true
	}

	return columns, nil
}
