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
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// ProbeResult is the outcome of a direct liveness check.
type ProbeResult int

const (
	// ProbeAmbiguous means the driver has no cheap way to tell, a real
	// statement is needed to decide.
	ProbeAmbiguous ProbeResult = iota
	// ProbeAlive means the connection is usable.
	ProbeAlive
	// ProbeDead means the connection must be replaced.
	ProbeDead
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeAlive:
		return "alive"
	case ProbeDead:
		return "dead"
	default:
		return "ambiguous"
	}
}

// fallbackProbeSQL is executed when the direct check is ambiguous.
const fallbackProbeSQL = "SELECT 1"

// Prober asks a connection whether it is alive without issuing a statement.
type Prober func(ctx context.Context, conn *sql.Conn) ProbeResult

// DriverProbe inspects the driver connection behind conn. A driver
// connection that reports itself invalid is dead. Otherwise it is pinged
// when the driver supports it. Drivers without a ping are ambiguous.
func DriverProbe(ctx context.Context, conn *sql.Conn) ProbeResult {
	result := ProbeAmbiguous
	err := conn.Raw(func(driverConn interface{}) error {
		if v, ok := driverConn.(driver.Validator); ok && !v.IsValid() {
			result = ProbeDead
			return nil
		}
		pinger, ok := driverConn.(driver.Pinger)
		if !ok {
			return nil
		}
		err := pinger.Ping(ctx)
		switch {
		case err == nil:
			result = ProbeAlive
		case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn):
			result = ProbeDead
		}
		return nil
	})
	if err != nil {
		// sql.ErrConnDone and friends: the handle is gone
		return ProbeDead
	}
	return result
}

// probe runs the two tier liveness check and reports whether conn is usable.
func (g *Guardian) probe(ctx context.Context) bool {
	g.probes.Inc()

	result := g.prober(ctx, g.conn)
	if result != ProbeAmbiguous {
		g.logger.Debug("probe connection", zap.String("guardian", g.id), zap.Stringer("result", result))
		return result == ProbeAlive
	}

	if _, err := g.conn.ExecContext(ctx, fallbackProbeSQL); err != nil {
		g.logger.Warn("fallback probe failed", zap.String("guardian", g.id), zap.Error(err))
		return false
	}
	return true
}
