//go:build integration

// Package integration runs the billing services against a real PostgreSQL
// started with testcontainers and migrated with the embedded schema.
package integration

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dormitory/backend/internal/infrastructure/migration"
	"github.com/dormitory/backend/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// billingTables are truncated between tests, children first.
const billingTables = "payments, invoice_items, invoices, student_profiles, rooms"

// postgresServer is started once per package and shared by every test.
var postgresServer struct {
	mu        sync.Mutex
	container *tcpostgres.PostgresContainer
	dsn       string
}

// TestDB is a connection to the migrated shared database.
type TestDB struct {
	DB *gorm.DB
	t  *testing.T
}

// NewSharedTestDB opens a connection to the shared container, starting and
// migrating it on first use. Data from earlier tests is still present
// until CleanTables runs.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	dsn := sharedDSN(t)
	db := openGorm(t, dsn)
	return &TestDB{DB: db, t: t}
}

func sharedDSN(t *testing.T) string {
	t.Helper()
	postgresServer.mu.Lock()
	defer postgresServer.mu.Unlock()
	if postgresServer.container != nil {
		return postgresServer.dsn
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("dorm_test"),
		tcpostgres.WithUsername("dorm"),
		tcpostgres.WithPassword("dorm"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator := openGorm(t, dsn)
	sqlDB, err := migrator.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migrations.FS, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up(), "apply embedded migrations")

	postgresServer.container = container
	postgresServer.dsn = dsn
	return dsn
}

// openGorm connects with SQL logging when TEST_DB_DEBUG is set. The pool
// is closed when the test finishes.
func openGorm(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// concurrent payment tests need more than one connection
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CleanTables empties every billing and residence table.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	require.NoError(tdb.t, tdb.DB.Exec("TRUNCATE TABLE "+billingTables+" CASCADE").Error)
}

// CleanupSharedContainer stops the shared container; TestMain calls it.
func CleanupSharedContainer() {
	postgresServer.mu.Lock()
	defer postgresServer.mu.Unlock()
	if postgresServer.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = postgresServer.container.Terminate(ctx)
	postgresServer.container = nil
}
