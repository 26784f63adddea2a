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

// Package guardian keeps a single database connection usable for simple
// scripts. The connection is trusted for a configurable threshold after it
// was last verified; past it, the next access probes the connection and
// reconnects with the stored settings when the probe fails.
package guardian

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	"github.com/pingcap/sqlguard/pkg/dbutil"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrStaleConn means a connection supplied by the caller failed the
	// liveness probe; there are no settings to open a new one.
	ErrStaleConn = errors.New("connection is not alive and there are no settings to reconnect with")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("guardian is closed")
)

// failpointOpenFailed makes every connection attempt fail when enabled.
const failpointOpenFailed = "github.com/pingcap/sqlguard/pkg/guardian/openFailed"

// Opener opens a database handle from settings.
type Opener func(ctx context.Context, cfg *dbutil.DBConfig) (*sql.DB, error)

// Option customizes a Guardian.
type Option func(g *Guardian)

// WithLogger sets the logger, log.L() is used by default.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Guardian) {
		g.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guardian) {
		g.now = now
	}
}

// WithOpener replaces dbutil.OpenDB.
func WithOpener(opener Opener) Option {
	return func(g *Guardian) {
		g.opener = opener
	}
}

// WithProber replaces DriverProbe as the direct liveness check.
func WithProber(prober Prober) Option {
	return func(g *Guardian) {
		g.prober = prober
	}
}

// Stats are counters kept by a guardian.
type Stats struct {
	Statements uint64
	Probes     uint64
	Reconnects uint64
}

// Guardian owns one database connection. Only the freshness check and the
// reconnect in Conn are serialized. A connection already returned to a caller
// may be closed underneath it when another caller triggers a reconnect, so a
// guardian is meant to be used from one goroutine at a time.
type Guardian struct {
	mu sync.Mutex

	id     string
	driver string
	// settings is nil when the connection belongs to the caller
	settings *dbutil.DBConfig

	db     *sql.DB
	conn   *sql.Conn
	closed bool

	threshold     time.Duration
	lastCheckedAt time.Time
	debug         bool

	seq        atomic.Uint64
	probes     atomic.Uint64
	reconnects atomic.Uint64

	logger *zap.Logger
	now    func() time.Time
	opener Opener
	prober Prober
}

func newGuardian(cfg *Config, opts []Option) *Guardian {
	g := &Guardian{
		id:        uuid.New().String(),
		driver:    cfg.Driver,
		threshold: cfg.CheckThreshold(),
		debug:     cfg.Debug,
		logger:    log.L(),
		now:       time.Now,
		opener:    dbutil.OpenDB,
		prober:    DriverProbe,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// New opens a connection with the settings in cfg. It fails if the
// connection can not be opened.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Guardian, error) {
	if cfg == nil {
		return nil, errors.New("guardian config is nil")
	}
	c := *cfg
	if err := c.Adjust(); err != nil {
		return nil, errors.Trace(err)
	}

	g := newGuardian(&c, opts)
	g.settings = c.ToDBConfig()
	if err := g.connect(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	g.lastCheckedAt = g.now()

	g.logger.Info("connection opened",
		zap.String("guardian", g.id),
		zap.Stringer("config", g.settings),
		zap.Duration("check threshold", g.threshold))
	return g, nil
}

// NewWithConn guards a connection owned by the caller. The guardian never
// replaces it and Close leaves it open. Only the driver, threshold and debug
// fields of cfg are used, cfg may be nil.
func NewWithConn(conn *sql.Conn, cfg *Config, opts ...Option) (*Guardian, error) {
	if conn == nil {
		return nil, errors.New("connection is nil")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if err := c.adjustCheck(); err != nil {
		return nil, errors.Trace(err)
	}

	g := newGuardian(&c, opts)
	g.conn = conn
	g.lastCheckedAt = g.now()
	return g, nil
}

// ID identifies the guardian in logs.
func (g *Guardian) ID() string {
	return g.id
}

// Driver returns the driver name of the guarded connection.
func (g *Guardian) Driver() string {
	return g.driver
}

// Stats returns a snapshot of the counters.
func (g *Guardian) Stats() Stats {
	return Stats{
		Statements: g.seq.Load(),
		Probes:     g.probes.Load(),
		Reconnects: g.reconnects.Load(),
	}
}

// Conn returns a connection that was either verified within the check
// threshold or just opened. When the threshold has passed the connection is
// probed; a dead connection is replaced once, without retry.
func (g *Guardian) Conn(ctx context.Context) (*sql.Conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, errors.Trace(ErrClosed)
	}

	if g.conn == nil {
		// the last reconnect failed
		if err := g.reconnect(ctx); err != nil {
			return nil, errors.Trace(err)
		}
		return g.conn, nil
	}

	now := g.now()
	if now.Sub(g.lastCheckedAt) <= g.threshold {
		return g.conn, nil
	}

	if g.probe(ctx) {
		g.lastCheckedAt = now
		return g.conn, nil
	}

	if g.settings == nil {
		return nil, errors.Trace(ErrStaleConn)
	}

	g.logger.Warn("connection is not alive, reconnect",
		zap.String("guardian", g.id),
		zap.Duration("since last check", now.Sub(g.lastCheckedAt)))
	g.discard()
	if err := g.reconnect(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	return g.conn, nil
}

func (g *Guardian) reconnect(ctx context.Context) error {
	if err := g.connect(ctx); err != nil {
		return errors.Trace(err)
	}
	g.reconnects.Inc()
	g.lastCheckedAt = g.now()
	g.logger.Info("connection reopened", zap.String("guardian", g.id), zap.Uint64("reconnects", g.reconnects.Load()))
	return nil
}

// connect opens a database handle and takes one connection from it.
func (g *Guardian) connect(ctx context.Context) error {
	if _, err := failpoint.Eval(failpointOpenFailed); err == nil {
		return errors.Errorf("open %s connection: injected failure", g.settings.Driver)
	}

	db, err := g.opener(ctx, g.settings)
	if err != nil {
		return errors.Annotatef(err, "open %s connection", g.settings.Driver)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			g.logger.Warn("close database", zap.String("guardian", g.id), zap.Error(cerr))
		}
		return errors.Annotatef(err, "open %s connection", g.settings.Driver)
	}

	g.db, g.conn = db, conn
	return nil
}

// discard drops the owned connection and database handle.
func (g *Guardian) discard() {
	if g.conn != nil {
		if err := g.conn.Close(); err != nil {
			g.logger.Debug("close connection", zap.String("guardian", g.id), zap.Error(err))
		}
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			g.logger.Warn("close database", zap.String("guardian", g.id), zap.Error(err))
		}
	}
	g.conn, g.db = nil, nil
}

// Close releases the connection opened by the guardian. A connection
// supplied by the caller is left open.
func (g *Guardian) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if g.settings == nil {
		g.conn = nil
		return nil
	}

	var err error
	if g.conn != nil {
		if cerr := g.conn.Close(); cerr != nil && cerr != sql.ErrConnDone {
			err = cerr
		}
	}
	if cerr := dbutil.CloseDB(g.db); cerr != nil && err == nil {
		err = cerr
	}
	g.conn, g.db = nil, nil
	return errors.Trace(err)
}
