// Copyright 2026 PingCAP, Inc.
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

package guardian

import (
	"encoding/json"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/sqlguard/pkg/dbutil"
)

// DefaultCheckThreshold is how long a connection is trusted without probing.
const DefaultCheckThreshold = 30 * time.Second

// Config is the configuration of a guardian.
type Config struct {
	Driver   string `toml:"driver" json:"driver"`
	Host     string `toml:"host" json:"host"`
	Port     int    `toml:"port" json:"port"`
	User     string `toml:"user" json:"user"`
	Password string `toml:"password" json:"-"`
	Database string `toml:"database" json:"database"`

	Params map[string]string `toml:"params" json:"params"`

	SSLCA   string `toml:"ssl-ca" json:"ssl-ca"`
	SSLCert string `toml:"ssl-cert" json:"ssl-cert"`
	SSLKey  string `toml:"ssl-key" json:"ssl-key"`

	// ConnectionCheckThreshold is in seconds, 0 means DefaultCheckThreshold.
	ConnectionCheckThreshold int `toml:"connection-check-threshold" json:"connection-check-threshold"`

	// Debug logs every statement with its sequence number.
	Debug bool `toml:"debug" json:"debug"`
}

// Adjust fills the defaults and validates the config.
func (c *Config) Adjust() error {
	if err := c.adjustCheck(); err != nil {
		return errors.Trace(err)
	}

	switch c.Driver {
	case dbutil.DriverMySQL:
		if c.Host == "" {
			c.Host = dbutil.DefaultHost
		}
		if c.Port == 0 {
			c.Port = dbutil.DefaultPort
		}
		if c.Port < 0 || c.Port > 65535 {
			return errors.NotValidf("port %d", c.Port)
		}
	case dbutil.DriverSQLite:
		if c.Database == "" {
			return errors.New("database file is required for sqlite")
		}
	}

	if (c.SSLCert == "") != (c.SSLKey == "") {
		return errors.New("ssl-cert and ssl-key must be set together")
	}
	return nil
}

// adjustCheck only touches the fields that matter for a guardian wrapping
// an existing connection.
func (c *Config) adjustCheck() error {
	if c.Driver == "" {
		c.Driver = dbutil.DriverMySQL
	}
	switch c.Driver {
	case dbutil.DriverMySQL, dbutil.DriverSQLite:
	default:
		return errors.NotSupportedf("driver %s", c.Driver)
	}

	if c.ConnectionCheckThreshold < 0 {
		return errors.NotValidf("connection-check-threshold %d", c.ConnectionCheckThreshold)
	}
	if c.ConnectionCheckThreshold == 0 {
		c.ConnectionCheckThreshold = int(DefaultCheckThreshold / time.Second)
	}
	return nil
}

// CheckThreshold returns the threshold as a duration.
func (c *Config) CheckThreshold() time.Duration {
	if c.ConnectionCheckThreshold <= 0 {
		return DefaultCheckThreshold
	}
	return time.Duration(c.ConnectionCheckThreshold) * time.Second
}

// ToDBConfig converts the connection settings to a dbutil.DBConfig.
func (c *Config) ToDBConfig() *dbutil.DBConfig {
	cfg := &dbutil.DBConfig{
		Driver:   c.Driver,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Schema:   c.Database,
		Params:   c.Params,
	}
	if c.SSLCA != "" {
		cfg.Security = &dbutil.Security{
			CAPath:   c.SSLCA,
			CertPath: c.SSLCert,
			KeyPath:  c.SSLKey,
		}
	}
	return cfg
}

func (c *Config) String() string {
	cfg, err := json.Marshal(c)
	if err != nil {
		return "<nil>"
	}
	return string(cfg)
}
