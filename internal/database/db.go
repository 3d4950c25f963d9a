// Package database opens the SQL connection backing the persistent pictogram cache.
package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/at-ishikawa/pictomap/internal/config"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DSN builds the data source name for cfg.Driver. cfg.DSN wins when set.
func DSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	switch cfg.Driver {
	case DriverMySQL:
		mysqlCfg := mysql.NewConfig()
		mysqlCfg.User = cfg.Username
		mysqlCfg.Passwd = cfg.Password
		mysqlCfg.Net = "tcp"
		mysqlCfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mysqlCfg.DBName = cfg.Database
		mysqlCfg.ParseTime = true
		if cfg.TLS {
			mysqlCfg.TLSConfig = "true"
		}
		if len(cfg.Params) > 0 {
			mysqlCfg.Params = cfg.Params
		}
		return mysqlCfg.FormatDSN(), nil

	case DriverPostgres:
		query := url.Values{}
		for key, value := range cfg.Params {
			query.Set(key, value)
		}
		if query.Get("sslmode") == "" {
			if cfg.TLS {
				query.Set("sslmode", "require")
			} else {
				query.Set("sslmode", "disable")
			}
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:     "/" + cfg.Database,
			RawQuery: query.Encode(),
		}
		return u.String(), nil

	case DriverSQLite:
		if cfg.Database == "" {
			return "", fmt.Errorf("sqlite needs a database file")
		}
		if len(cfg.Params) == 0 {
			return cfg.Database, nil
		}
		query := url.Values{}
		for key, value := range cfg.Params {
			query.Set(key, value)
		}
		return cfg.Database + "?" + query.Encode(), nil
	}
	return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Open opens a connection pool for cfg.Driver. No connection is made until first use.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("build data source name: %w", err)
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	return db, nil
}
