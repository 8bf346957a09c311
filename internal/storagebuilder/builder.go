package storagebuilder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/storage"
	memorystorage "github.com/Aarzish/study-planner/internal/storage/memory"
	sqlstorage "github.com/Aarzish/study-planner/internal/storage/sql"
)

const (
	TypeMemory   = "memory"
	TypeSQL      = "sql"
	TypeSqlite   = "sqlite"
	TypePostgres = "postgres"

	DefaultSqlitePath     = "planner.db"
	defaultConnectTimeout = 15 * time.Second
)

var ErrIncompleteDatabase = errors.New("database config is incomplete")

type Config struct {
	// StorageType is memory, sqlite or postgres. sql leaves the choice to Database.Driver.
	StorageType    string
	Database       sqlstorage.Config
	ConnectTimeout time.Duration
}

func New(config Config) (storage.Storage, error) {
	kind := strings.ToLower(strings.TrimSpace(config.StorageType))
	if kind == TypeMemory {
		log.Debug("session kept in memory, it is lost on exit")
		return memorystorage.New(), nil
	}

	db, err := databaseConfig(kind, config.Database)
	if err != nil {
		return nil, err
	}
	if db.Driver == sqlstorage.DriverSqlite {
		if err := os.MkdirAll(filepath.Dir(db.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to prepare sqlite dir for %q: %w", db.Path, err)
		}
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	s := sqlstorage.New(db)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s database %s: %w", db.Driver, location(db), err)
	}
	log.WithField("driver", db.Driver).Debugf("storage opened at %s", location(db))
	return s, nil
}

// databaseConfig resolves the driver for kind and fills sqlite defaults.
func databaseConfig(kind string, db sqlstorage.Config) (sqlstorage.Config, error) {
	switch kind {
	case TypeSqlite, TypePostgres:
		db.Driver = kind
	case TypeSQL:
		db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
		if db.Driver == "" {
			db.Driver = sqlstorage.DriverSqlite
		}
	default:
		return db, fmt.Errorf("unknown storage type %s", kind)
	}

	switch db.Driver {
	case sqlstorage.DriverSqlite:
		if db.Path == "" {
			db.Path = DefaultSqlitePath
		}
	case sqlstorage.DriverPostgres:
		if db.Host == "" || db.Database == "" {
			return db, fmt.Errorf("%w: postgres needs host and database", ErrIncompleteDatabase)
		}
		if db.Port == 0 {
			db.Port = 5432
		}
	default:
		return db, fmt.Errorf("unknown database driver %s", db.Driver)
	}
	return db, nil
}

func location(db sqlstorage.Config) string {
	if db.Driver == sqlstorage.DriverPostgres {
		return fmt.Sprintf("%s:%d/%s", db.Host, db.Port, db.Database)
	}
	return db.Path
}
