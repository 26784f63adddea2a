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
	"context"
	"database/sql"

	"github.com/coreos/go-semver/semver"
	"github.com/pingcap/errors"
	"github.com/pingcap/sqlguard/pkg/dbutil"
	"go.uber.org/zap"
)

// statementConn returns the guarded connection and counts the statement.
func (g *Guardian) statementConn(ctx context.Context, query string) (*sql.Conn, error) {
	conn, err := g.Conn(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}

	seq := g.seq.Inc()
	if g.debug {
		g.logger.Info("[sql]", zap.Uint64("seq", seq), zap.String("sql", query))
	}
	return conn, nil
}

// QueryScalar returns the first column of the first row; ok is false when
// there is no row.
func (g *Guardian) QueryScalar(ctx context.Context, query string, args ...interface{}) (value interface{}, ok bool, err error) {
	conn, err := g.statementConn(ctx, query)
	if err != nil {
		return nil, false, err
	}
	value, ok, err = dbutil.QueryScalar(ctx, conn, query, args...)
	return value, ok, errors.Trace(err)
}

// QueryRow returns the values of the first row, empty if there is none.
func (g *Guardian) QueryRow(ctx context.Context, query string, args ...interface{}) ([]interface{}, error) {
	conn, err := g.statementConn(ctx, query)
	if err != nil {
		return nil, err
	}
	row, err := dbutil.QueryRow(ctx, conn, query, args...)
	return row, errors.Trace(err)
}

// QueryColumn returns the first column of every row.
func (g *Guardian) QueryColumn(ctx context.Context, query string, args ...interface{}) ([]interface{}, error) {
	conn, err := g.statementConn(ctx, query)
	if err != nil {
		return nil, err
	}
	column, err := dbutil.QueryColumn(ctx, conn, query, args...)
	return column, errors.Trace(err)
}

// QueryRecords returns every row as a map from column name to value.
func (g *Guardian) QueryRecords(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	conn, err := g.statementConn(ctx, query)
	if err != nil {
		return nil, err
	}
	records, err := dbutil.QueryRecords(ctx, conn, query, args...)
	return records, errors.Trace(err)
}

// QueryRows returns the column names and every row.
func (g *Guardian) QueryRows(ctx context.Context, query string, args ...interface{}) (*dbutil.ResultSet, error) {
	conn, err := g.statementConn(ctx, query)
	if err != nil {
		return nil, err
	}
	rs, err := dbutil.QueryRows(ctx, conn, query, args...)
	return rs, errors.Trace(err)
}

// QueryTSV returns the result as tab separated lines with a header.
func (g *Guardian) QueryTSV(ctx context.Context, query string, args ...interface{}) (string, error) {
	conn, err := g.statementConn(ctx, query)
	if err != nil {
		return "", err
	}
	tsv, err := dbutil.QueryTSV(ctx, conn, query, args...)
	return tsv, errors.Trace(err)
}

// InsertID runs a single row INSERT and returns the generated id.
func (g *Guardian) InsertID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	conn, err := g.statementConn(ctx, query)
	if err != nil {
		return 0, err
	}
	id, err := dbutil.InsertID(ctx, conn, query, args...)
	return id, errors.Trace(err)
}

// Exec runs a statement without reading any rows.
func (g *Guardian) Exec(ctx context.Context, query string, args ...interface{}) error {
	conn, err := g.statementConn(ctx, query)
	if err != nil {
		return err
	}
	return errors.Trace(dbutil.Exec(ctx, conn, query, args...))
}

// ServerVersion returns the version reported by the server.
func (g *Guardian) ServerVersion(ctx context.Context) (*semver.Version, error) {
	conn, err := g.statementConn(ctx, dbutil.VersionSQL(g.driver))
	if err != nil {
		return nil, err
	}
	version, err := dbutil.GetDBVersion(ctx, conn, g.driver)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return dbutil.ParseServerVersion(version)
}
