package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Aarzish/study-planner/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"   // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
	log "github.com/sirupsen/logrus"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = "CREATE TABLE IF NOT EXISTS local_storage (key TEXT PRIMARY KEY, value TEXT NOT NULL)"

type Config struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	driver string
	dsn    string
	db     *sqlx.DB
}

func New(config Config) *Storage {
	s := &Storage{driver: config.Driver}
	switch config.Driver {
	case DriverPostgres:
		s.dsn = fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			config.Host, config.Port, config.Database, config.Username, config.Password)
	default:
		s.driver = DriverSqlite
		s.dsn = config.Path
	}
	return s
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, s.driver, s.dsn)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return fmt.Errorf("%w: %v", storage.ErrConnectionFailed, err)
	}
	if s.driver == DriverSqlite {
		// a single writer avoids "database is locked"
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to prepare schema: %w", err)
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageNotPrepare
	}
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind("SELECT value FROM local_storage WHERE key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to get %q: %w", key, storage.ErrNotFound)
	}
	return value, err
}

func (s *Storage) Set(ctx context.Context, key string, value string) error {
	if key == "" {
		return storage.ErrIncorrectKey
	}
	if s.db == nil {
		return storage.ErrStorageNotPrepare
	}
	_, err := s.db.ExecContext(
		ctx,
		s.db.Rebind("INSERT INTO local_storage(key, value) VALUES(?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value"),
		key, value,
	)
	return err
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	if s.db == nil {
		return storage.ErrStorageNotPrepare
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM local_storage WHERE key = ?"), key)
	return err
}
