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
	"strconv"
	"strings"
	"time"

	"github.com/pingcap/errors"
)

// ResultSet is a fully read result: the column names and every row.
type ResultSet struct {
	Columns []string
	// Types are the database type names of the columns, empty when the
	// driver does not report them.
	Types []string
	Rows  [][]interface{}
}

// withRows prepares query, runs it with args and hands the rows to fn.
// The statement and rows are always closed; a close error is reported
// only when nothing else failed.
func withRows(ctx context.Context, p StmtPreparer, query string, args []interface{}, fn func(rows *sql.Rows) error) (err error) {
	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return errors.Annotatef(err, "prepare sql[%s]", query)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = errors.Trace(cerr)
		}
	}()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return errors.Annotatef(err, "query sql[%s]", query)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = errors.Trace(cerr)
		}
	}()

	if err = fn(rows); err != nil {
		return errors.Annotatef(err, "read result of sql[%s]", query)
	}
	return errors.Annotatef(rows.Err(), "read result of sql[%s]", query)
}

// QueryScalar returns the first column of the first row. ok is false if the
// query yields no rows.
func QueryScalar(ctx context.Context, p StmtPreparer, query string, args ...interface{}) (value interface{}, ok bool, err error) {
	err = withRows(ctx, p, query, args, func(rows *sql.Rows) error {
		if !rows.Next() {
			return nil
		}
		vals, err := ScanRowValues(rows)
		if err != nil {
			return err
		}
		if len(vals) > 0 {
			value, ok = vals[0], true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, ok, nil
}

// QueryRow returns the column values of the first row, or an empty slice.
func QueryRow(ctx context.Context, p StmtPreparer, query string, args ...interface{}) ([]interface{}, error) {
	row := make([]interface{}, 0)
	err := withRows(ctx, p, query, args, func(rows *sql.Rows) error {
		if !rows.Next() {
			return nil
		}
		vals, err := ScanRowValues(rows)
		if err != nil {
			return err
		}
		row = vals
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// QueryColumn returns the first column of every row.
func QueryColumn(ctx context.Context, p StmtPreparer, query string, args ...interface{}) ([]interface{}, error) {
	column := make([]interface{}, 0)
	err := withRows(ctx, p, query, args, func(rows *sql.Rows) error {
		for rows.Next() {
			vals, err := ScanRowValues(rows)
			if err != nil {
				return err
			}
			if len(vals) > 0 {
				column = append(column, vals[0])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return column, nil
}

// QueryRecords returns one map per row keyed by column name. When a name
// appears twice the later column wins.
func QueryRecords(ctx context.Context, p StmtPreparer, query string, args ...interface{}) ([]map[string]interface{}, error) {
	records := make([]map[string]interface{}, 0)
	err := withRows(ctx, p, query, args, func(rows *sql.Rows) error {
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			vals, err := ScanRowValues(rows)
			if err != nil {
				return err
			}
			record := make(map[string]interface{}, len(cols))
			for i, col := range cols {
				record[col] = vals[i]
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// QueryRows reads the whole result.
func QueryRows(ctx context.Context, p StmtPreparer, query string, args ...interface{}) (*ResultSet, error) {
	rs := &ResultSet{Rows: make([][]interface{}, 0)}
	err := withRows(ctx, p, query, args, func(rows *sql.Rows) error {
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		rs.Columns = cols
		if rs.Types, err = columnTypeNames(rows); err != nil {
			return err
		}
		for rows.Next() {
			vals, err := ScanRowValues(rows)
			if err != nil {
				return err
			}
			rs.Rows = append(rs.Rows, vals)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// QueryTSV renders the result as tab separated text: a header line with the
// column names, then one line per row. Every line ends with '\n' and NULL
// renders as an empty field.
func QueryTSV(ctx context.Context, p StmtPreparer, query string, args ...interface{}) (string, error) {
	var b strings.Builder
	err := withRows(ctx, p, query, args, func(rows *sql.Rows) error {
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		types, err := columnTypeNames(rows)
		if err != nil {
			return err
		}
		b.WriteString(strings.Join(cols, "\t"))
		b.WriteByte('\n')

		fields := make([]string, len(cols))
		for rows.Next() {
			vals, err := ScanRowValues(rows)
			if err != nil {
				return err
			}
			for i, v := range vals {
				fields[i] = FormatColumnValue(v, types[i])
			}
			b.WriteString(strings.Join(fields, "\t"))
			b.WriteByte('\n')
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// InsertID runs a single row INSERT and returns the id generated for it.
func InsertID(ctx context.Context, p StmtPreparer, query string, args ...interface{}) (int64, error) {
	res, err := execStmt(ctx, p, query, args)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Annotatef(err, "get last insert id of sql[%s]", query)
	}
	return id, nil
}

// Exec runs a statement and ignores any rows it produces.
func Exec(ctx context.Context, p StmtPreparer, query string, args ...interface{}) error {
	_, err := execStmt(ctx, p, query, args)
	return err
}

func execStmt(ctx context.Context, p StmtPreparer, query string, args []interface{}) (res sql.Result, err error) {
	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Annotatef(err, "prepare sql[%s]", query)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = errors.Trace(cerr)
		}
	}()

	res, err = stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, errors.Annotatef(err, "execute sql[%s]", query)
	}
	return res, nil
}

func columnTypeNames(rows *sql.Rows) ([]string, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Trace(err)
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.DatabaseTypeName()
	}
	return names, nil
}

// ScanRowValues scans the current row into a slice with one normalized
// value per column.
func ScanRowValues(rows *sql.Rows) ([]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Trace(err)
	}

	colVals := make([]interface{}, len(cols))
	colValsPtr := make([]interface{}, len(cols))
	for i := range colVals {
		colValsPtr[i] = &colVals[i]
	}

	if err = rows.Scan(colValsPtr...); err != nil {
		return nil, errors.Trace(err)
	}
	for i, v := range colVals {
		colVals[i] = NormalizeValue(v)
	}
	return colVals, nil
}

// NormalizeValue turns the raw bytes returned by text protocols into a string.
func NormalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// FormatColumnValue renders v like FormatValue, but a time read from a DATE
// column keeps only its date part.
func FormatColumnValue(v interface{}, dbType string) string {
	if t, ok := v.(time.Time); ok && strings.EqualFold(dbType, "DATE") {
		return t.Format("2006-01-02")
	}
	return FormatValue(v)
}

// FormatValue renders a column value as text, NULL becomes an empty string.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return val.Format("2006-01-02 15:04:05.999999")
	default:
		return fmt.Sprint(val)
	}
}
