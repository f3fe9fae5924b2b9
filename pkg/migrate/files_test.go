package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestCreateAtWritesValidMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 9, 7, 0, 0, time.UTC)

	path, err := createAt(dir, "  Add Order Notes! ", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20250301090700_add_order_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = createAt(dir, "add order notes", now)
	assert.ErrorContains(t, err, "already exists")

	_, err = createAt(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"bad name":    "create_orders.sql",
		"no down":     "20250301090000_orders.sql",
		"down before": "20250301090001_orders.sql",
	}
	bodies := map[string]string{
		"bad name":    markerUp + "\n" + markerDown + "\n",
		"no down":     markerUp + "\nSELECT 1;\n",
		"down before": markerDown + "\n" + markerUp + "\n",
	}
	for name, file := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(bodies[name]), 0o644))
			assert.Error(t, ValidateDir(dir))
		})
	}
}

func TestListFilesOrdersByVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20250302000000_b.sql", "20250301000000_a.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(markerUp+"\n"+markerDown+"\n"), 0o644))
	}
	files, err := ListFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a", files[0].Name)
	assert.Equal(t, "b", files[1].Name)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20250301090700")
	require.NoError(t, err)
	assert.Equal(t, int64(20250301090700), v)

	for _, raw := range []string{"", "latest", "-1"} {
		_, err := ParseVersion(raw)
		assert.Error(t, err, raw)
	}
}

func TestVersionStep(t *testing.T) {
	assert.Equal(t, 1, versionStep(1, 2))
	assert.Equal(t, -1, versionStep(3, 2))
	assert.Equal(t, 0, versionStep(2, 2))
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectSQLite, DialectFor(config.DBConfig{Driver: "SQLite"}))
	assert.Equal(t, DialectPostgres, DialectFor(config.DBConfig{Driver: "postgres"}))
}

func TestRunRequiresDB(t *testing.T) {
	assert.Error(t, RunDialect(context.Background(), nil, DialectPostgres, "migrations", "status"))
}
