package persistence

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/hupe1980/isvd/blobstore"
)

// ReadInterval reads and verifies one basis blob.
func ReadInterval(ctx context.Context, store blobstore.BlobStore, name string) (*IntervalData, error) {
	rank, err := rankFromName(name)
	if err != nil {
		return nil, err
	}

	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	// Mapped blobs decode straight from the mapping; decode copies every
	// value out before Close.
	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, err
	}

	d, err := decode(data, rank)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// ReadIntervals reads the blobs of one manifest interval in rank order.
func ReadIntervals(ctx context.Context, store blobstore.BlobStore, info IntervalInfo) ([]*IntervalData, error) {
	out := make([]*IntervalData, len(info.Blobs))
	for i, name := range info.Blobs {
		d, err := ReadInterval(ctx, store, name)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func rankFromName(name string) (int, error) {
	base := path.Base(name)
	i := strings.LastIndexByte(base, '.')
	if !strings.HasPrefix(base, "interval-") || i < 0 {
		return 0, fmt.Errorf("persistence: not a basis blob name: %q", name)
	}
	rank, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0, fmt.Errorf("persistence: not a basis blob name: %q", name)
	}
	return rank, nil
}
