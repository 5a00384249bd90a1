package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trend_backend/config"
	"trend_backend/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Store is the persistence layer for symbols, prices, snapshots and refresh runs
type Store struct {
	db     *gorm.DB
	driver string
	log    *slog.Logger
}

// sqliteParams are applied by the driver on every new connection
const sqliteParams = "_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on"

func sqliteDSN(path string) string {
	return "file:" + path + "?" + sqliteParams
}

// Open connects to the configured database
func Open(cfg config.DatabaseConfig, logLevel logger.LogLevel, log *slog.Logger) (*Store, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Driver {
	case config.DriverSQLite:
		db, err = openSQLite(cfg.Path, gormCfg)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to database", slog.String("driver", cfg.Driver), slog.String("path", cfg.Path))
	case config.DriverPostgres:
		log.Info("Connecting to database",
			slog.String("driver", cfg.Driver),
			slog.String("host", config.MaskHost(cfg.Host)),
			slog.String("port", cfg.Port),
			slog.String("dbname", cfg.Name),
		)
		db, err = gorm.Open(postgres.Open(cfg.PostgresDSN()), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	s := &Store{db: db, driver: cfg.Driver, log: log}
	if err := s.Ping(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return s, nil
}

func openSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite3", Conn: sqlDB}, gormCfg)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the schema
func (s *Store) Migrate() error {
	if err := models.MigrateStockModels(s.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SeedDefaults inserts the given symbols unless they already exist.
// Returns how many were new.
func (s *Store) SeedDefaults(ctx context.Context, symbols []models.Symbol) (int, error) {
	inserted := 0
	for i := range symbols {
		sym := symbols[i]
		ok, err := s.InsertSymbol(ctx, &sym)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	if inserted > 0 {
		s.log.Info("Seeded default symbols", slog.Int("inserted", inserted))
	}
	return inserted, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
