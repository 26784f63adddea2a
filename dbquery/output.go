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
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/pingcap/errors"
	"github.com/pingcap/sqlguard/pkg/dbutil"
	"github.com/pingcap/sqlguard/pkg/guardian"
	"github.com/pingcap/sqlguard/pkg/utils"
)

// run executes the configured statement on g and writes the result to out.
func run(ctx context.Context, g *guardian.Guardian, cfg *Config, out io.Writer) error {
	args := utils.StringsToInterfaces(cfg.Args)

	switch cfg.Mode {
	case modeVersion:
		version, err := g.ServerVersion(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = fmt.Fprintln(out, version)
		return errors.Trace(err)
	case modeExec:
		return errors.Trace(g.Exec(ctx, cfg.SQL, args...))
	case modeInsert:
		id, err := g.InsertID(ctx, cfg.SQL, args...)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = fmt.Fprintln(out, id)
		return errors.Trace(err)
	}

	switch cfg.Format {
	case formatJSON:
		records, err := g.QueryRecords(ctx, cfg.SQL, args...)
		if err != nil {
			return errors.Trace(err)
		}
		return writeJSON(out, records)
	case formatTable:
		rs, err := g.QueryRows(ctx, cfg.SQL, args...)
		if err != nil {
			return errors.Trace(err)
		}
		writeTable(out, rs)
		return nil
	default:
		tsv, err := g.QueryTSV(ctx, cfg.SQL, args...)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = io.WriteString(out, tsv)
		return errors.Trace(err)
	}
}

func writeJSON(out io.Writer, records []map[string]interface{}) error {
	if records == nil {
		records = []map[string]interface{}{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.Trace(enc.Encode(records))
}

func writeTable(out io.Writer, rs *dbutil.ResultSet) {
	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(rs.Columns)
	for _, row := range rs.Rows {
		line := make([]string, 0, len(row))
		for i, v := range row {
			if v == nil {
				line = append(line, "NULL")
				continue
			}
			var dbType string
			if i < len(rs.Types) {
				dbType = rs.Types[i]
			}
			line = append(line, dbutil.FormatColumnValue(v, dbType))
		}
		table.Append(line)
	}
	table.Render()
}
