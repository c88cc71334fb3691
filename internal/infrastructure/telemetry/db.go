package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls GORM instrumentation
type DBConfig struct {
	Tracing bool
	// LogFullSQL includes bound variables in span statements
	LogFullSQL         bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

type dbTimingKey struct{}

// DBMetrics records query counts, latencies and connection pool state
type DBMetrics struct {
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	poolConns      *Gauge
	poolConnsMax   *Gauge

	slowThreshold time.Duration
	poolInterval  time.Duration
	logger        *zap.Logger

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDBMetrics creates the database instruments on meter
func NewDBMetrics(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	m := &DBMetrics{
		slowThreshold: cfg.SlowQueryThreshold,
		poolInterval:  cfg.PoolStatsInterval,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}

	in := NewInstruments(meter)
	m.queryTotal = in.Counter("db_query_total", "Database queries by operation", "{query}")
	m.queryDuration = in.Histogram("db_query_duration_seconds", "Database query latency", "s", DBDurationBuckets)
	m.slowQueryTotal = in.Counter("db_slow_query_total", "Queries slower than the threshold by table", "{query}")
	m.poolConns = in.Gauge("db_pool_connections", "Pool connections by state", "{connection}")
	m.poolConnsMax = in.Gauge("db_pool_connections_max", "Maximum open connections", "{connection}")
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery records one completed statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, d time.Duration) {
	op := strings.ToUpper(operation)
	if op == "" {
		op = "OTHER"
	}
	m.queryTotal.Inc(ctx, AttrDBOperation.String(op))
	m.queryDuration.RecordDuration(ctx, d, AttrDBOperation.String(op))
	if d > m.slowThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// CollectPoolStats records the current pool state of db once
func (m *DBMetrics) CollectPoolStats(ctx context.Context, db *sql.DB) {
	stats := db.Stats()
	m.poolConnsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolConns.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConns.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConns.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// StartPoolStatsCollection samples pool stats until ctx is done or Stop is called
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context, db *sql.DB) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.poolInterval)
		defer ticker.Stop()

		m.CollectPoolStats(ctx, db)
		for {
			select {
			case <-ticker.C:
				m.CollectPoolStats(ctx, db)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends pool stats collection. Safe to call more than once.
func (m *DBMetrics) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// InstrumentDB registers otelgorm tracing (when cfg.Tracing) and, when metrics
// is non-nil, query metrics on db. Slow statements are flagged on their span.
func InstrumentDB(db *gorm.DB, cfg DBConfig, metrics *DBMetrics, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}

	if cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}
	if !cfg.Tracing && metrics == nil {
		return nil
	}

	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			observeStatement(tx, operation, cfg.SlowQueryThreshold, metrics)
		}
	}

	cb := db.Callback()
	steps := []struct {
		name string
		err  error
	}{
		{"create", cb.Create().Before("gorm:create").Register("dorm_telemetry:before_create", markStart)},
		{"create", cb.Create().After("gorm:create").Register("dorm_telemetry:after_create", after("INSERT"))},
		{"query", cb.Query().Before("gorm:query").Register("dorm_telemetry:before_query", markStart)},
		{"query", cb.Query().After("gorm:query").Register("dorm_telemetry:after_query", after("SELECT"))},
		{"update", cb.Update().Before("gorm:update").Register("dorm_telemetry:before_update", markStart)},
		{"update", cb.Update().After("gorm:update").Register("dorm_telemetry:after_update", after("UPDATE"))},
		{"delete", cb.Delete().Before("gorm:delete").Register("dorm_telemetry:before_delete", markStart)},
		{"delete", cb.Delete().After("gorm:delete").Register("dorm_telemetry:after_delete", after("DELETE"))},
		{"row", cb.Row().Before("gorm:row").Register("dorm_telemetry:before_row", markStart)},
		{"row", cb.Row().After("gorm:row").Register("dorm_telemetry:after_row", after(""))},
		{"raw", cb.Raw().Before("gorm:raw").Register("dorm_telemetry:before_raw", markStart)},
		{"raw", cb.Raw().After("gorm:raw").Register("dorm_telemetry:after_raw", after(""))},
	}
	for _, s := range steps {
		if s.err != nil {
			return s.err
		}
	}

	logger.Info("Database instrumentation registered",
		zap.Bool("tracing", cfg.Tracing),
		zap.Bool("metrics", metrics != nil),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return nil
}

func markStart(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tx.Statement.Context = context.WithValue(ctx, dbTimingKey{}, time.Now())
}

func observeStatement(tx *gorm.DB, operation string, slow time.Duration, metrics *DBMetrics) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(dbTimingKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if operation == "" {
		operation = detectOperation(tx.Statement.SQL.String())
	}

	if metrics != nil {
		metrics.RecordQuery(ctx, operation, tx.Statement.Table, elapsed)
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	if elapsed > slow {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", slow.Milliseconds()),
		))
	}
}

func detectOperation(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}
