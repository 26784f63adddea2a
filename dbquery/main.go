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
	"context"
	"fmt"
	"os"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/sqlguard/pkg/guardian"
	"github.com/pingcap/sqlguard/pkg/utils"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg := NewConfig()
	err := cfg.Parse(os.Args[1:])
	switch errors.Cause(err) {
	case nil:
	case flag.ErrHelp:
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "parse cmd flags err %s\n%s", err, cfg.usage())
		os.Exit(2)
	}

	if cfg.PrintVersion {
		fmt.Print(utils.GetRawInfo("dbquery"))
		return
	}

	if err := initLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "init logger err %s\n", err)
		os.Exit(2)
	}

	if err := cfg.Adjust(); err != nil {
		log.Error("invalid config", zap.String("error", errors.ErrorStack(err)))
		utils.SyncLog()
		os.Exit(2)
	}
	utils.LogInfo("dbquery")
	log.Debug("config", zap.Stringer("config", cfg))

	code := 0
	if err := query(context.Background(), cfg); err != nil {
		log.Error("dbquery failed", zap.String("error", errors.ErrorStack(err)))
		code = 1
	}
	utils.SyncLog()
	os.Exit(code)
}

func query(ctx context.Context, cfg *Config) error {
	g, err := guardian.New(ctx, &cfg.Config)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := g.Close(); err != nil {
			log.Warn("close connection", zap.Error(err))
		}
	}()

	return run(ctx, g, cfg, os.Stdout)
}

// initLogger writes logs to the log file, or to stderr so stdout only
// carries the result.
func initLogger(cfg *Config) error {
	logCfg := &log.Config{
		Level: cfg.LogLevel,
		File:  log.FileLogConfig{Filename: cfg.LogFile},
	}

	var (
		lg    *zap.Logger
		props *log.ZapProperties
		err   error
	)
	if cfg.LogFile != "" {
		lg, props, err = log.InitLogger(logCfg)
	} else {
		lg, props, err = log.InitLoggerWithWriteSyncer(logCfg, zapcore.AddSync(os.Stderr), zapcore.AddSync(os.Stderr))
	}
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(lg, props)
	return nil
}
