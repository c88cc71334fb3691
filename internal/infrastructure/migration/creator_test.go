package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/dormitory/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add payments table", "add_payments_table"},
		{"Add-Payments-Table", "add_payments_table"},
		{"ADD_PAYMENTS_TABLE", "add_payments_table"},
		{"add__gateway__status", "add_gateway_status"},
		{"Add Index 123", "add_index_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("numbers the first migration 000001", func(t *testing.T) {
		dir := t.TempDir()

		mf, err := CreateMigration(dir, "add payments table", "Payments applied to invoices")
		require.NoError(t, err)

		assert.Equal(t, "000001", mf.Version)
		assert.Equal(t, filepath.Join(dir, "000001_add_payments_table.up.sql"), mf.UpPath)
		assert.Equal(t, filepath.Join(dir, "000001_add_payments_table.down.sql"), mf.DownPath)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "add payments table")
		assert.Contains(t, string(up), "Payments applied to invoices")

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "Rollback")
	})

	t.Run("continues after the highest version", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_init.up.sql"), []byte("--"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_init.down.sql"), []byte("--"), 0o644))

		mf, err := CreateMigration(dir, "add index", "")
		require.NoError(t, err)
		assert.Equal(t, "000008", mf.Version)
	})

	t.Run("creates the directory", func(t *testing.T) {
		nested := filepath.Join(t.TempDir(), "nested", "migrations")

		_, err := CreateMigration(nested, "test", "")
		require.NoError(t, err)

		info, err := os.Stat(nested)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("rejects a name without usable characters", func(t *testing.T) {
		_, err := CreateMigration(t.TempDir(), "!!!", "")
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("orders by version and pairs directions", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000002_init_billing.up.sql":     {Data: []byte("--")},
			"000002_init_billing.down.sql":   {Data: []byte("--")},
			"000001_init_residence.up.sql":   {Data: []byte("--")},
			"000001_init_residence.down.sql": {Data: []byte("--")},
			"000003_orphan.up.sql":           {Data: []byte("--")},
			"README.md":                      {Data: []byte("docs")},
			"embed.go":                       {Data: []byte("package migrations")},
			"subdir.up.sql/x":                {Data: []byte("--")},
		}

		list, err := ListMigrations(fsys)
		require.NoError(t, err)
		require.Len(t, list, 3)

		assert.Equal(t, "000001_init_residence", list[0].BaseName())
		assert.Equal(t, "000002_init_billing", list[1].BaseName())
		assert.True(t, list[2].HasUp)
		assert.False(t, list[2].HasDown)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		list, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("embedded schema is complete", func(t *testing.T) {
		list, err := ListMigrations(migrations.FS)
		require.NoError(t, err)
		require.NotEmpty(t, list)

		for i, m := range list {
			assert.Equal(t, uint(i+1), m.Version, "versions are contiguous")
			assert.True(t, m.HasUp && m.HasDown, "%s needs both directions", m.BaseName())
		}
	})
}
