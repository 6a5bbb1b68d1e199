package minio

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/isvd/blobstore"
)

func TestStore_Keys(t *testing.T) {
	s := NewStore(nil, "bucket", "bases/")

	assert.Equal(t, "bases/run/interval-000000.000000", s.key("run/interval-000000.000000"))
	assert.Equal(t, "bases/", s.listPrefix(""))
	assert.Equal(t, "bases/run/", s.listPrefix("run/"))
	assert.Equal(t, "bases/run", s.listPrefix("run"))

	assert.Equal(t, "run/CURRENT", relativeName("bases/", "bases/run/CURRENT"))
	assert.Equal(t, "run/CURRENT", relativeName("bases", "bases/run/CURRENT"))
	assert.Equal(t, "CURRENT", relativeName("", "CURRENT"))
}

// TestMinioStore_Integration requires a running MinIO instance at
// MINIO_ENDPOINT (for example localhost:9000).
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const bucket = "test-isvd"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, fmt.Sprintf("test-%d/", time.Now().UnixNano()))

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "run/basis", data))

	blob, err := store.Open(ctx, "run/basis")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	got, err := blobstore.ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "minio", string(buf))
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "run/")
	require.NoError(t, err)
	assert.Equal(t, []string{"run/basis"}, names)

	require.NoError(t, store.Delete(ctx, "run/basis"))
	_, err = store.Open(ctx, "run/basis")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
