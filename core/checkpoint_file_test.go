package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T, opts ...FileStoreOption) *FileCheckpointStore {
	t.Helper()
	store, err := NewFileCheckpointStore(t.TempDir(), time.Hour, opts...)
	require.NoError(t, err)
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	record := []byte(`{"kind":"data_layer","path":"direct"}`)
	id, err := store.Save(ctx, record)
	require.NoError(t, err)

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
}

func TestFileStoreWritesOneFilePerCheckpoint(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileCheckpointStore(dir, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	id, err := store.Save(ctx, []byte(`{}`))
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, id+".json"))
	assert.NoError(t, statErr)

	// No temp write-ahead left behind.
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, leftovers)
}

func TestFileStoreMissingAndDeleted(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, id))

	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, store.Delete(ctx, id), ErrValidation)
}

func TestFileStoreCorruptRecordRemoved(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileCheckpointStore(dir, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	id, err := store.Save(ctx, []byte(`{}`))
	require.NoError(t, err)

	path := filepath.Join(dir, id+".json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	_, err = store.Load(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "corrupt file should have been removed")
}

func TestFileStoreTypeMismatchedRecordRemoved(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileCheckpointStore(dir, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	id, err := store.Save(ctx, []byte(`{}`))
	require.NoError(t, err)

	// Valid JSON, wrong shape: no state field.
	path := filepath.Join(dir, id+".json")
	require.NoError(t, os.WriteFile(path, []byte(`{"expires_at": 99}`), 0o644))

	_, err = store.Load(ctx, id)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStoreExpiry(t *testing.T) {
	ft := &fakeTime{now: time.Unix(7000, 0)}
	store := newFileStore(t, WithFileStoreClock(ft.clock))
	ctx := context.Background()

	id, err := store.Save(ctx, []byte(`{}`))
	require.NoError(t, err)

	ft.advance(2 * time.Hour)
	_, err = store.Load(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	_, err = store.Load(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileCheckpointStore(dir, time.Hour)
	require.NoError(t, err)
	record := []byte(`{"kind":"data_code"}`)
	id, err := first.Save(ctx, record)
	require.NoError(t, err)

	second, err := NewFileCheckpointStore(dir, time.Hour)
	require.NoError(t, err)
	loaded, err := second.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
}

func TestFileStoreMalformedIDRejected(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "../escape")
	assert.ErrorIs(t, err, ErrValidation)
}
