package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestBlobStore(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("PutOpen", func(t *testing.T) {
				data := []byte("spatial basis")
				require.NoError(t, store.Put(ctx, "run/interval-000000.000000", data))

				b, err := store.Open(ctx, "run/interval-000000.000000")
				require.NoError(t, err)
				defer b.Close()

				assert.Equal(t, int64(len(data)), b.Size())

				buf := make([]byte, 5)
				n, err := b.ReadAt(ctx, buf, 8)
				require.NoError(t, err)
				assert.Equal(t, 5, n)
				assert.Equal(t, "basis", string(buf))

				n, err = b.ReadAt(ctx, make([]byte, 8), 10)
				assert.ErrorIs(t, err, io.EOF)
				assert.Equal(t, 3, n)

				all, err := ReadAll(ctx, b)
				require.NoError(t, err)
				assert.Equal(t, data, all)
			})

			t.Run("Overwrite", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "run/CURRENT", []byte("old")))
				require.NoError(t, store.Put(ctx, "run/CURRENT", []byte("manifest-2")))

				got, err := Get(ctx, store, "run/CURRENT")
				require.NoError(t, err)
				assert.Equal(t, "manifest-2", string(got))
			})

			t.Run("PutCopiesInput", func(t *testing.T) {
				data := []byte("abc")
				require.NoError(t, store.Put(ctx, "copy", data))
				data[0] = 'x'

				got, err := Get(ctx, store, "copy")
				require.NoError(t, err)
				assert.Equal(t, "abc", string(got))
			})

			t.Run("List", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "list/b", []byte{1}))
				require.NoError(t, store.Put(ctx, "list/a", []byte{2}))
				require.NoError(t, store.Put(ctx, "other/c", []byte{3}))

				names, err := store.List(ctx, "list/")
				require.NoError(t, err)
				assert.Equal(t, []string{"list/a", "list/b"}, names)
			})

			t.Run("Delete", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "gone", []byte{1}))
				require.NoError(t, store.Delete(ctx, "gone"))
				require.NoError(t, store.Delete(ctx, "gone"))

				_, err := store.Open(ctx, "gone")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("NotFound", func(t *testing.T) {
				_, err := store.Open(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)

				_, err = Get(ctx, store, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("Canceled", func(t *testing.T) {
				cctx, cancel := context.WithCancel(ctx)
				cancel()

				assert.ErrorIs(t, store.Put(cctx, "x", []byte{1}), context.Canceled)
			})
		})
	}
}

func TestLocalStore_Mappable(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "a/b", []byte("mapped")))

	b, err := store.Open(ctx, "a/b")
	require.NoError(t, err)

	m, ok := b.(Mappable)
	require.True(t, ok)

	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(data))

	require.NoError(t, b.Close())
	_, err = m.Bytes()
	assert.Error(t, err)
}

func TestLocalStore_NoTempFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalStore(root)

	require.NoError(t, store.Put(ctx, "dir/blob", []byte("x")))

	entries, err := os.ReadDir(filepath.Join(root, "dir"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blob", entries[0].Name())
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

type readerBlob struct {
	data []byte
}

func (b *readerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return readAt(b.data, p, off)
}

func (b *readerBlob) Close() error { return nil }
func (b *readerBlob) Size() int64  { return int64(len(b.data)) }

func TestReadAll_NonMappable(t *testing.T) {
	got, err := ReadAll(context.Background(), &readerBlob{data: []byte("remote")})
	require.NoError(t, err)
	assert.Equal(t, "remote", string(got))

	got, err = ReadAll(context.Background(), &readerBlob{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
