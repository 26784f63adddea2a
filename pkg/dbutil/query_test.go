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
	"strings"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/pingcap/check"
	"github.com/pingcap/errors"
)

var _ = Suite(&testQuerySuite{})

type testQuerySuite struct{}

func newMock(c *C) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	c.Assert(err, IsNil)
	return db, mock
}

// newTypedRows builds rows whose columns report a database type, each column
// given as "name TYPE".
func newTypedRows(columns ...string) *sqlmock.Rows {
	defs := make([]*sqlmock.Column, 0, len(columns))
	for _, col := range columns {
		name, typ, _ := strings.Cut(col, " ")
		defs = append(defs, sqlmock.NewColumn(name).OfType(typ, nil))
	}
	return sqlmock.NewRowsWithColumnDefinition(defs...)
}

func (*testQuerySuite) TestQueryScalar(c *C) {
	ctx := context.Background()
	db, mock := newMock(c)
	defer db.Close()

	query := "SELECT name, age FROM t WHERE id > ?"
	mock.ExpectPrepare(query).ExpectQuery().WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name", "age"}).AddRow([]byte("a"), int64(1)).AddRow([]byte("b"), int64(2)))
	value, ok, err := QueryScalar(ctx, db, query, 1)
	c.Assert(err, IsNil)
	c.Assert(ok, IsTrue)
	c.Assert(value, Equals, "a")

	mock.ExpectPrepare(query).ExpectQuery().WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"name", "age"}))
	value, ok, err = QueryScalar(ctx, db, query, 100)
	c.Assert(err, IsNil)
	c.Assert(ok, IsFalse)
	c.Assert(value, IsNil)

	// a NULL value is still a row
	mock.ExpectPrepare(query).ExpectQuery().WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"name", "age"}).AddRow(nil, nil))
	value, ok, err = QueryScalar(ctx, db, query, 2)
	c.Assert(err, IsNil)
	c.Assert(ok, IsTrue)
	c.Assert(value, IsNil)

	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (*testQuerySuite) TestQueryRowAndColumn(c *C) {
	ctx := context.Background()
	db, mock := newMock(c)
	defer db.Close()

	query := "SELECT id, name FROM t"
	mock.ExpectPrepare(query).ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "a").AddRow(int64(2), "b"))
	row, err := QueryRow(ctx, db, query)
	c.Assert(err, IsNil)
	c.Assert(row, DeepEquals, []interface{}{int64(1), "a"})

	mock.ExpectPrepare(query).ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "a").AddRow(int64(2), nil))
	column, err := QueryColumn(ctx, db, query)
	c.Assert(err, IsNil)
	c.Assert(column, DeepEquals, []interface{}{int64(1), int64(2)})

	mock.ExpectPrepare(query).ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	row, err = QueryRow(ctx, db, query)
	c.Assert(err, IsNil)
	c.Assert(row, NotNil)
	c.Assert(row, HasLen, 0)

	mock.ExpectPrepare(query).ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	column, err = QueryColumn(ctx, db, query)
	c.Assert(err, IsNil)
	c.Assert(column, NotNil)
	c.Assert(column, HasLen, 0)

	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (*testQuerySuite) TestQueryRecordsAndTSV(c *C) {
	ctx := context.Background()
	db, mock := newMock(c)
	defer db.Close()

	query := "SELECT id, name, score FROM t WHERE id IN (?, ?)"
	newRows := func() *sqlmock.Rows {
		return newTypedRows("id BIGINT", "name VARCHAR", "score DOUBLE").
			AddRow(int64(1), []byte("a"), 1.5).
			AddRow(int64(2), []byte("b\tc"), nil)
	}

	mock.ExpectPrepare(query).ExpectQuery().WithArgs(1, 2).WillReturnRows(newRows())
	records, err := QueryRecords(ctx, db, query, 1, 2)
	c.Assert(err, IsNil)
	c.Assert(records, DeepEquals, []map[string]interface{}{
		{"id": int64(1), "name": "a", "score": 1.5},
		{"id": int64(2), "name": "b\tc", "score": nil},
	})

	mock.ExpectPrepare(query).ExpectQuery().WithArgs(1, 2).WillReturnRows(newRows())
	tsv, err := QueryTSV(ctx, db, query, 1, 2)
	c.Assert(err, IsNil)
	c.Assert(tsv, Equals, "id\tname\tscore\n1\ta\t1.5\n2\tb\tc\t\n")

	mock.ExpectPrepare(query).ExpectQuery().WithArgs(3, 4).WillReturnRows(newTypedRows("id BIGINT", "name VARCHAR", "score DOUBLE"))
	tsv, err = QueryTSV(ctx, db, query, 3, 4)
	c.Assert(err, IsNil)
	c.Assert(tsv, Equals, "id\tname\tscore\n")

	mock.ExpectPrepare(query).ExpectQuery().WithArgs(3, 4).WillReturnRows(sqlmock.NewRows([]string{"id", "name", "score"}))
	records, err = QueryRecords(ctx, db, query, 3, 4)
	c.Assert(err, IsNil)
	c.Assert(records, HasLen, 0)

	// a DATE read as a time prints without a time of day, server text is kept
	dateQuery := "SELECT d, ts FROM t"
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectPrepare(dateQuery).ExpectQuery().WillReturnRows(newTypedRows("d DATE", "ts DATETIME").
		AddRow(day, day).
		AddRow([]byte("2024-01-03"), []byte("2024-01-03 04:05:06.000000")))
	tsv, err = QueryTSV(ctx, db, dateQuery)
	c.Assert(err, IsNil)
	c.Assert(tsv, Equals, "d\tts\n2024-01-02\t2024-01-02 00:00:00\n2024-01-03\t2024-01-03 04:05:06.000000\n")

	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (*testQuerySuite) TestDuplicateColumnNames(c *C) {
	ctx := context.Background()
	db, mock := newMock(c)
	defer db.Close()

	query := "SELECT a.id, b.id FROM a JOIN b"
	mock.ExpectPrepare(query).ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "id"}).AddRow(int64(1), int64(2)))
	records, err := QueryRecords(ctx, db, query)
	c.Assert(err, IsNil)
	c.Assert(records, DeepEquals, []map[string]interface{}{{"id": int64(2)}})

	mock.ExpectPrepare(query).ExpectQuery().
		WillReturnRows(newTypedRows("id BIGINT", "id INT").AddRow(int64(1), int64(2)))
	rs, err := QueryRows(ctx, db, query)
	c.Assert(err, IsNil)
	c.Assert(rs.Columns, DeepEquals, []string{"id", "id"})
	c.Assert(rs.Types, DeepEquals, []string{"BIGINT", "INT"})
	c.Assert(rs.Rows, DeepEquals, [][]interface{}{{int64(1), int64(2)}})

	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (*testQuerySuite) TestInsertIDAndExec(c *C) {
	ctx := context.Background()
	db, mock := newMock(c)
	defer db.Close()

	insert := "INSERT INTO t (id, name) VALUES (?, ?)"
	mock.ExpectPrepare(insert).ExpectExec().WithArgs(100, "a").WillReturnResult(sqlmock.NewResult(42, 1))
	id, err := InsertID(ctx, db, insert, 100, "a")
	c.Assert(err, IsNil)
	c.Assert(id, Equals, int64(42))

	update := "UPDATE t SET name = ? WHERE id = ?"
	mock.ExpectPrepare(update).ExpectExec().WithArgs("b", 42).WillReturnResult(sqlmock.NewResult(0, 1))
	c.Assert(Exec(ctx, db, update, "b", 42), IsNil)

	mock.ExpectPrepare(insert).ExpectExec().WithArgs(1, "a").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("no insert id")))
	_, err = InsertID(ctx, db, insert, 1, "a")
	c.Assert(err, ErrorMatches, ".*no insert id.*")

	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (*testQuerySuite) TestStatementErrors(c *C) {
	ctx := context.Background()
	db, mock := newMock(c)
	defer db.Close()

	query := "SELECT * FROM not_exist"
	mock.ExpectPrepare(query).WillReturnError(errors.New("Error 1146: Table 'test.not_exist' doesn't exist"))
	_, _, err := QueryScalar(ctx, db, query)
	c.Assert(err, ErrorMatches, "prepare sql\\[SELECT \\* FROM not_exist\\]: Error 1146.*")

	mock.ExpectPrepare(query).ExpectQuery().WillReturnError(errors.New("Error 1105: unknown"))
	_, err = QueryTSV(ctx, db, query)
	c.Assert(err, ErrorMatches, "query sql\\[SELECT \\* FROM not_exist\\]: Error 1105.*")

	mock.ExpectPrepare(query).ExpectExec().WillReturnError(errors.New("Error 1105: unknown"))
	err = Exec(ctx, db, query)
	c.Assert(err, ErrorMatches, "execute sql\\[SELECT \\* FROM not_exist\\]: Error 1105.*")

	mock.ExpectPrepare(query).ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).RowError(0, errors.New("broken row")))
	_, err = QueryColumn(ctx, db, query)
	c.Assert(err, ErrorMatches, ".*broken row.*")

	c.Assert(mock.ExpectationsWereMet(), IsNil)
}

func (*testQuerySuite) TestFormatValue(c *C) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	testCases := []struct {
		value  interface{}
		expect string
	}{
		{nil, ""},
		{"a", "a"},
		{[]byte("b"), "b"},
		{int64(-3), "-3"},
		{1.25, "1.25"},
		{true, "1"},
		{false, "0"},
		{ts, "2024-01-02 03:04:05"},
		{ts.Add(1500 * time.Microsecond), "2024-01-02 03:04:05.0015"},
		{uint8(7), "7"},
	}

	for _, testCase := range testCases {
		c.Assert(FormatValue(testCase.value), Equals, testCase.expect)
	}
	c.Assert(FormatColumnValue(ts, "DATE"), Equals, "2024-01-02")
	c.Assert(FormatColumnValue(ts, "DATETIME"), Equals, "2024-01-02 03:04:05")
	c.Assert(FormatColumnValue([]byte("2024-01-02"), "date"), Equals, "2024-01-02")
	c.Assert(NormalizeValue([]byte("x")), Equals, "x")
	c.Assert(NormalizeValue(int64(1)), Equals, int64(1))
}
