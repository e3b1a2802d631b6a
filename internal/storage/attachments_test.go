package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxSize int64) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), "/uploads", maxSize)
	require.NoError(t, err)
	return store
}

func TestStoreWritesFile(t *testing.T) {
	store := newTestStore(t, 0)

	obj, err := store.Store(context.Background(), strings.NewReader("hello"), Metadata{
		FileName:  "note.txt",
		MimeType:  "text/plain",
		SizeBytes: 5,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(obj.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(obj.ExternalID, ".txt"))

	data, err := os.ReadFile(filepath.Join(store.Dir(), obj.ExternalID))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStoreRejectsDisallowedMime(t *testing.T) {
	store := newTestStore(t, 0)

	_, err := store.Store(context.Background(), strings.NewReader("x"), Metadata{
		FileName: "run.sh",
		MimeType: "application/x-sh",
	})
	assert.Error(t, err)
}

func TestStoreRejectsOversizedDeclaredFile(t *testing.T) {
	store := newTestStore(t, 10)

	_, err := store.Store(context.Background(), strings.NewReader("x"), Metadata{
		FileName:  "big.png",
		MimeType:  "image/png",
		SizeBytes: 11,
	})
	assert.Error(t, err)
}

func TestStoreEnforcesCapOnActualBytes(t *testing.T) {
	store := newTestStore(t, 10)

	_, err := store.Store(context.Background(), strings.NewReader(strings.Repeat("a", 20)), Metadata{
		FileName:  "sneaky.png",
		MimeType:  "image/png",
		SizeBytes: 5,
	})
	assert.Error(t, err)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove(t *testing.T) {
	store := newTestStore(t, 0)

	obj, err := store.Store(context.Background(), strings.NewReader("data"), Metadata{
		FileName: "pic.png",
		MimeType: "image/png",
	})
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), obj.ExternalID))
	_, err = os.Stat(filepath.Join(store.Dir(), obj.ExternalID))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Remove(context.Background(), obj.ExternalID))
	assert.Error(t, store.Remove(context.Background(), "../escape"))
}
