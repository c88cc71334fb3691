package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type roomRow struct {
	ID     uint `gorm:"primaryKey"`
	Number string
}

func newManualMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

// collectByAttr returns the int64 points of the named metric keyed by the value of key.
// Sums are added up; gauges keep the last value.
func collectByAttr(t *testing.T, reader *sdkmetric.ManualReader, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					v, _ := dp.Attributes.Value(key)
					out[v.AsString()] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					v, _ := dp.Attributes.Value(key)
					out[v.AsString()] = dp.Value
				}
			}
		}
	}
	return out
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&roomRow{}))
	return db
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	mp, reader := newManualMeter(t)
	m, err := NewDBMetrics(mp.Meter("db"), DBConfig{SlowQueryThreshold: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordQuery(ctx, "select", "invoices", 10*time.Millisecond)
	m.RecordQuery(ctx, "UPDATE", "invoices", 80*time.Millisecond)
	m.RecordQuery(ctx, "", "", time.Second)

	assert.Equal(t, map[string]int64{"SELECT": 1, "UPDATE": 1, "OTHER": 1},
		collectByAttr(t, reader, "db_query_total", AttrDBOperation))
	assert.Equal(t, map[string]int64{"invoices": 1, "unknown": 1},
		collectByAttr(t, reader, "db_slow_query_total", AttrDBTable))
}

func TestDBMetrics_PoolStats(t *testing.T) {
	mp, reader := newManualMeter(t)
	m, err := NewDBMetrics(mp.Meter("db"), DBConfig{PoolStatsInterval: time.Hour}, zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := openTestDB(t).DB()
	require.NoError(t, err)

	m.StartPoolStatsCollection(context.Background(), sqlDB)
	m.Stop()
	m.Stop()

	states := collectByAttr(t, reader, "db_pool_connections", AttrDBState)
	assert.Contains(t, states, "idle")
	assert.Contains(t, states, "in_use")
	assert.Contains(t, states, "open")
}

func TestInstrumentDB(t *testing.T) {
	recorder := useSpanRecorder(t)
	mp, reader := newManualMeter(t)
	db := openTestDB(t)

	m, err := NewDBMetrics(mp.Meter("db"), DBConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, InstrumentDB(db, DBConfig{Tracing: true, SlowQueryThreshold: time.Nanosecond}, m, nil))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&roomRow{Number: "A-101"}).Error)
	var rows []roomRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	require.NoError(t, db.WithContext(ctx).Model(&roomRow{}).Where("id = ?", rows[0].ID).Update("number", "A-102").Error)
	var count int64
	require.NoError(t, db.WithContext(ctx).Raw("SELECT count(*) FROM room_rows").Scan(&count).Error)

	ops := collectByAttr(t, reader, "db_query_total", AttrDBOperation)
	assert.Equal(t, int64(1), ops["INSERT"])
	assert.GreaterOrEqual(t, ops["SELECT"], int64(2))
	assert.Equal(t, int64(1), ops["UPDATE"])

	assert.NotEmpty(t, recorder.Ended(), "otelgorm spans are exported")
}

func TestInstrumentDB_Disabled(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, InstrumentDB(db, DBConfig{}, nil, nil))
	require.NoError(t, db.Create(&roomRow{Number: "B-1"}).Error)
}

func TestDetectOperation(t *testing.T) {
	assert.Equal(t, "SELECT", detectOperation("  select 1"))
	assert.Equal(t, "DELETE", detectOperation("DELETE FROM payments"))
	assert.Equal(t, "OTHER", detectOperation("PRAGMA foreign_keys"))
}
