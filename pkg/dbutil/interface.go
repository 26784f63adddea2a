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
)

// check compatibility
var (
	_ QueryExecutor = &sql.DB{}
	_ QueryExecutor = &sql.Conn{}
	_ StmtPreparer  = &sql.DB{}
	_ StmtPreparer  = &sql.Conn{}
	_ StmtPreparer  = &sql.Tx{}
)

// QueryExecutor runs ad-hoc queries.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// StmtPreparer prepares statements, the shaping helpers in this package
// always go through a prepared statement.
type StmtPreparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}
