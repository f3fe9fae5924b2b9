package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestProductsMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "create_customers_and_products")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CHECK (stock >= 0)",
		"deleted_at timestamptz",
		"DROP TABLE IF EXISTS products",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestLifecycleMigrationsContainConstraints(t *testing.T) {
	checks := map[string][]string{
		"create_stock_movements": {
			"CHECK (quantity > 0)",
			"REFERENCES products(id)",
		},
		"create_carts": {
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_items_cart_product ON cart_items (cart_id, product_id)",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_customer_id",
		},
		"create_orders": {
			"stock_restored boolean NOT NULL DEFAULT false",
			"'CANCELLED'",
		},
		"create_payments_and_shippings": {
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_order_id",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_shippings_order_id",
		},
	}
	for name, subs := range checks {
		content := readMigration(t, name)
		for _, sub := range subs {
			assert.True(t, strings.Contains(content, sub), "%s missing %q", name, sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Refund Table!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_refund_table.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}
