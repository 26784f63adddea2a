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

package main

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"github.com/pingcap/sqlguard/pkg/guardian"
	flag "github.com/spf13/pflag"
)

// result modes
const (
	modeQuery   = "query"
	modeExec    = "exec"
	modeInsert  = "insert"
	modeVersion = "version"
)

// output formats
const (
	formatTSV   = "tsv"
	formatTable = "table"
	formatJSON  = "json"
)

// Config is the configuration of dbquery.
type Config struct {
	*flag.FlagSet `toml:"-" json:"-"`

	guardian.Config

	LogLevel string `toml:"log-level" json:"log-level"`
	LogFile  string `toml:"log-file" json:"log-file"`

	// statement to run
	SQL    string `toml:"execute" json:"execute"`
	Mode   string `toml:"mode" json:"mode"`
	Format string `toml:"format" json:"format"`

	// bind values, from the positional arguments
	Args []string `toml:"-" json:"args"`

	ConfigFile   string `toml:"-" json:"-"`
	PrintVersion bool   `toml:"-" json:"-"`
}

// NewConfig creates a new config.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.FlagSet = flag.NewFlagSet("dbquery", flag.ContinueOnError)
	fs := cfg.FlagSet

	fs.StringVar(&cfg.ConfigFile, "config", "", "Config file")
	fs.StringVarP(&cfg.LogLevel, "log-level", "L", "info", "log level: debug, info, warn, error, fatal")
	fs.StringVar(&cfg.LogFile, "log-file", "", "log file path, stderr if empty")
	fs.StringVar(&cfg.Driver, "driver", "mysql", "database driver: mysql or sqlite")
	fs.StringVar(&cfg.Host, "host", "", "database host")
	fs.IntVarP(&cfg.Port, "port", "P", 0, "database port")
	fs.StringVarP(&cfg.User, "user", "u", "root", "database user")
	fs.StringVarP(&cfg.Password, "password", "p", "", "database password")
	fs.StringVarP(&cfg.Database, "database", "D", "", "database name, or the file path for sqlite")
	fs.IntVar(&cfg.ConnectionCheckThreshold, "check-threshold", 0, "seconds a connection is trusted before it is probed, 0 means 30")
	fs.BoolVar(&cfg.Debug, "debug", false, "log every statement with its sequence number")
	fs.StringVarP(&cfg.SQL, "execute", "e", "", "statement to run")
	fs.StringVar(&cfg.Mode, "mode", modeQuery, "query, exec, insert or version")
	fs.StringVar(&cfg.Format, "format", formatTSV, "output format of query mode: tsv, table or json")
	fs.BoolVarP(&cfg.PrintVersion, "version", "V", false, "print version of dbquery")

	return cfg
}

// Parse parses flag definitions from the argument list.
func (c *Config) Parse(arguments []string) error {
	// Parse first to get config file.
	err := c.FlagSet.Parse(arguments)
	if err != nil {
		return errors.Trace(err)
	}

	// Load config file if specified.
	if c.ConfigFile != "" {
		err = c.configFromFile(c.ConfigFile)
		if err != nil {
			return errors.Trace(err)
		}
	}

	// Parse again to replace with command line options.
	err = c.FlagSet.Parse(arguments)
	if err != nil {
		return errors.Trace(err)
	}

	c.Args = c.FlagSet.Args()
	return nil
}

// configFromFile loads config from file.
func (c *Config) configFromFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Trace(err)
	}
	if len(meta.Undecoded()) > 0 {
		return errors.Errorf("unknown keys in config file %s: %v", path, meta.Undecoded())
	}
	return nil
}

// Adjust validates the flags and the guardian config.
func (c *Config) Adjust() error {
	switch c.Mode {
	case modeQuery, modeExec, modeInsert:
		if c.SQL == "" {
			return errors.Errorf("no statement given, use -e for mode %s", c.Mode)
		}
	case modeVersion:
	default:
		return errors.NotSupportedf("mode %s", c.Mode)
	}

	switch c.Format {
	case formatTSV, formatTable, formatJSON:
	default:
		return errors.NotSupportedf("format %s", c.Format)
	}

	return errors.Trace(c.Config.Adjust())
}

func (c *Config) String() string {
	cfg, err := json.Marshal(c)
	if err != nil {
		return "<nil>"
	}
	return string(cfg)
}

func (c *Config) usage() string {
	return fmt.Sprintf("Usage of dbquery:\n%s", c.FlagSet.FlagUsages())
}
