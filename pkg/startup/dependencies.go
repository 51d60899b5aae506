package startup

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/pollen/pkg/database"
	"github.com/Ramsey-B/pollen/pkg/kafka"
	"github.com/Ramsey-B/pollen/pkg/redis"
)

// DatabaseDependency opens the Postgres pool.
type DatabaseDependency struct {
	cfg    database.ConnectConfig
	logger ectologger.Logger
	DB     *sqlx.DB
}

func NewDatabaseDependency(cfg database.ConnectConfig, logger ectologger.Logger) *DatabaseDependency {
	return &DatabaseDependency{cfg: cfg, logger: logger}
}

func (d *DatabaseDependency) GetName() string     { return "database" }
func (d *DatabaseDependency) DependsOn() []string { return nil }

func (d *DatabaseDependency) Start(ctx context.Context) error {
	db, err := database.Connect(ctx, d.cfg, d.logger)
	if err != nil {
		return err
	}
	d.DB = db
	return nil
}

func (d *DatabaseDependency) Stop(_ context.Context) error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// MigrationDependency applies the schema migrations once the database is reachable.
type MigrationDependency struct {
	db       *DatabaseDependency
	migrator *database.Migrator
}

func NewMigrationDependency(db *DatabaseDependency, migrator *database.Migrator) *MigrationDependency {
	return &MigrationDependency{db: db, migrator: migrator}
}

func (m *MigrationDependency) GetName() string     { return "migrations" }
func (m *MigrationDependency) DependsOn() []string { return []string{"database"} }

func (m *MigrationDependency) Start(_ context.Context) error {
	return m.migrator.Up(m.db.DB.DB, m.db.cfg.Name)
}

func (m *MigrationDependency) Stop(_ context.Context) error { return nil }

// KafkaDependency checks that a broker is reachable before the producer is used. It is
// only registered when brokers are configured.
type KafkaDependency struct {
	brokers  []string
	producer interface{ Close() error }
}

func NewKafkaDependency(brokers []string, producer interface{ Close() error }) *KafkaDependency {
	return &KafkaDependency{brokers: brokers, producer: producer}
}

func (k *KafkaDependency) GetName() string     { return "kafka" }
func (k *KafkaDependency) DependsOn() []string { return nil }

func (k *KafkaDependency) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return kafka.Ping(ctx, k.brokers)
}

func (k *KafkaDependency) Stop(_ context.Context) error {
	if k.producer == nil {
		return nil
	}
	return k.producer.Close()
}

// RedisDependency waits for Redis before the page locker is used.
type RedisDependency struct {
	client *redis.Client
}

func NewRedisDependency(client *redis.Client) *RedisDependency {
	return &RedisDependency{client: client}
}

func (r *RedisDependency) GetName() string     { return "redis" }
func (r *RedisDependency) DependsOn() []string { return nil }

func (r *RedisDependency) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.client.Ping(ctx)
}

func (r *RedisDependency) Stop(_ context.Context) error {
	return r.client.Close()
}
