// Copyright 2018 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package dbutil

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // register the "sqlite" driver
)

const (
	// DriverMySQL is the driver name registered by go-sql-driver/mysql.
	DriverMySQL = "mysql"
	// DriverSQLite is the driver name registered by modernc.org/sqlite.
	DriverSQLite = "sqlite"

	// DefaultHost is used when no host is configured for a network database.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the standard MySQL port.
	DefaultPort = 3306
)

var (
	// ErrVersionNotFound means can't get the database's version
	ErrVersionNotFound = errors.New("can't get the database's version")
)

// Security holds the TLS files used to reach the database.
type Security struct {
	CAPath   string `toml:"ssl-ca" json:"ssl-ca"`
	CertPath string `toml:"ssl-cert" json:"ssl-cert"`
	KeyPath  string `toml:"ssl-key" json:"ssl-key"`
}

// DBConfig is database configuration.
type DBConfig struct {
	Driver string `toml:"driver" json:"driver"`

	Host string `toml:"host" json:"host"`

	Port int `toml:"port" json:"port"`

	User string `toml:"user" json:"user"`

	Password string `toml:"password" json:"-"`

	// Schema is the default database. For sqlite it is the database file.
	Schema string `toml:"schema" json:"schema"`

	// Params are appended to the DSN as-is.
	Params map[string]string `toml:"params" json:"params"`

	Security *Security `toml:"security" json:"security"`
}

// String returns native format of database configuration, the password is masked.
func (c *DBConfig) String() string {
	if c == nil {
		return "<nil>"
	}
	cfg := *c
	if cfg.Password != "" {
		cfg.Password = "******"
	}
	return fmt.Sprintf("DBConfig(%+v)", cfg)
}

// DSN builds the data source name for cfg's driver.
func DSN(cfg *DBConfig) (string, error) {
	switch cfg.Driver {
	case DriverMySQL, "":
		return mysqlDSN(cfg)
	case DriverSQLite:
		if cfg.Schema == "" {
			return "", errors.New("sqlite needs a database file")
		}
		if len(cfg.Params) == 0 {
			return cfg.Schema, nil
		}
		values := make(url.Values, len(cfg.Params))
		for k, v := range cfg.Params {
			values.Set(k, v)
		}
		return cfg.Schema + "?" + values.Encode(), nil
	default:
		return "", errors.NotSupportedf("driver %s", cfg.Driver)
	}
}

func mysqlDSN(cfg *DBConfig) (string, error) {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = cfg.Schema
	// DATE and DATETIME columns keep the text the server sent
	mc.ParseTime = false
	mc.Params = map[string]string{"charset": "utf8mb4"}

	for k, v := range cfg.Params {
		mc.Params[k] = v
	}

	if cfg.Security != nil && cfg.Security.CAPath != "" {
		tlsCfg, err := ToTLSConfig(cfg.Security.CAPath, cfg.Security.CertPath, cfg.Security.KeyPath)
		if err != nil {
			return "", errors.Trace(err)
		}
		name := "sqlguard-" + mc.Addr
		if err = mysql.RegisterTLSConfig(name, tlsCfg); err != nil {
			return "", errors.Trace(err)
		}
		mc.TLSConfig = name
	}

	return mc.FormatDSN(), nil
}

// OpenDB opens a database handle and pings it.
func OpenDB(ctx context.Context, cfg *DBConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMySQL
	}
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if err = db.PingContext(ctx); err != nil {
		if cerr := db.Close(); cerr != nil {
			log.Warn("close database after failed ping", zap.Error(cerr))
		}
		return nil, errors.Trace(err)
	}
	return db, nil
}

// CloseDB closes the database handle.
func CloseDB(db *sql.DB) error {
	if db == nil {
		return nil
	}

	return errors.Trace(db.Close())
}

// GetDBVersion returns the database's version
func GetDBVersion(ctx context.Context, q QueryExecutor, driver string) (string, error) {
	/*
		example in TiDB:
		mysql> select version();
		+--------------------------------------+
		| version()                            |
		+--------------------------------------+
		| 5.7.10-TiDB-v2.1.0-beta-173-g7e48ab1 |
		+--------------------------------------+

		example in sqlite:
		sqlite> select sqlite_version();
		3.46.0
	*/
	var version sql.NullString
	err := q.QueryRowContext(ctx, VersionSQL(driver)).Scan(&version)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return "", ErrVersionNotFound
		}
		return "", errors.Trace(err)
	}

	if version.Valid {
		return version.String, nil
	}

	return "", ErrVersionNotFound
}

// VersionSQL returns the statement GetDBVersion runs for driver.
func VersionSQL(driver string) string {
	if driver == DriverSQLite {
		return "SELECT sqlite_version()"
	}
	return "SELECT version()"
}

// IsTiDB returns true if the version string belongs to tidb
func IsTiDB(version string) bool {
	return strings.Contains(strings.ToLower(version), "tidb")
}
