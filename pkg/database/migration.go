package database

import (
	"database/sql"
	"io/fs"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

// migrateLogger adapts ectologger to migrate.Logger.
type migrateLogger struct {
	ectologger.Logger
}

func (migrateLogger) Verbose() bool { return false }

func (l migrateLogger) Printf(format string, v ...any) {
	l.Debugf(format, v...)
}

type MigrationConfig struct {
	// FolderPath overrides the embedded migrations with files on disk when set.
	FolderPath string
	// Version 0 migrates to the latest version.
	Version uint
	// Force marks the database clean at this version before migrating; 0 skips it.
	Force int
}

// Migrator applies schema migrations from an embedded filesystem or a folder on disk.
type Migrator struct {
	cfg      MigrationConfig
	embedded fs.FS
	dir      string
	logger   ectologger.Logger
}

func NewMigrator(cfg MigrationConfig, embedded fs.FS, dir string, logger ectologger.Logger) *Migrator {
	return &Migrator{cfg: cfg, embedded: embedded, dir: dir, logger: logger}
}

func (m *Migrator) open(db *sql.DB, databaseName string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create postgres migration driver")
	}

	if m.cfg.FolderPath != "" {
		mg, err := migrate.NewWithDatabaseInstance("file://"+m.cfg.FolderPath, databaseName, driver)
		return mg, errors.Wrapf(err, "failed to read migrations from %s", m.cfg.FolderPath)
	}

	src, err := iofs.New(m.embedded, m.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read embedded migrations")
	}
	mg, err := migrate.NewWithInstance("iofs", src, databaseName, driver)
	return mg, errors.Wrap(err, "failed to create migrate instance")
}

// Up brings the database to the configured version.
func (m *Migrator) Up(db *sql.DB, databaseName string) error {
	mg, err := m.open(db, databaseName)
	if err != nil {
		return err
	}
	mg.Log = migrateLogger{Logger: m.logger}

	if m.cfg.Force != 0 {
		if err := mg.Force(m.cfg.Force); err != nil {
			return errors.Wrapf(err, "failed to force database to version %d", m.cfg.Force)
		}
	}

	start := time.Now()
	if m.cfg.Version != 0 {
		err = mg.Migrate(m.cfg.Version)
	} else {
		err = mg.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("Database schema is up to date")
		return nil
	}
	if err != nil {
		version, dirty, _ := mg.Version()
		m.logger.WithError(err).WithFields(map[string]any{
			"version": version,
			"dirty":   dirty,
		}).Error("Failed to apply migrations")
		return errors.Wrap(err, "migration failed")
	}

	version, _, _ := mg.Version()
	m.logger.WithField("version", version).Infof("Database migrations applied in %v", time.Since(start))
	return nil
}
