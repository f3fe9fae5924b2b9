package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestLocalStoreWritesObject(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(config.StorageConfig{Dir: dir, BaseURL: "/uploads/"}, nil)
	require.NoError(t, err)

	url, err := store.Store(context.Background(), "slips/abc/slip.png", "image/png", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/slips/abc/slip.png", url)

	body, err := os.ReadFile(filepath.Join(dir, "slips", "abc", "slip.png"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(body))
	require.NoError(t, store.Ping(context.Background()))
}

func TestLocalStoreRefusesOverwrite(t *testing.T) {
	store, err := NewLocalStore(config.StorageConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = store.Store(context.Background(), "a.pdf", "application/pdf", strings.NewReader("1"))
	require.NoError(t, err)
	_, err = store.Store(context.Background(), "a.pdf", "application/pdf", strings.NewReader("2"))
	require.Error(t, err)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(config.StorageConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.png", "slips/../../x.png", "a//b.png"} {
		_, err := store.Store(context.Background(), name, "image/png", strings.NewReader("x"))
		assert.Errorf(t, err, "name %q", name)
	}
}

func TestNewLocalStoreRequiresDir(t *testing.T) {
	_, err := NewLocalStore(config.StorageConfig{}, nil)
	require.Error(t, err)
}
