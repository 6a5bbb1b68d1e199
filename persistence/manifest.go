package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/isvd/blobstore"
)

const (
	// CurrentFileName names the pointer to the active manifest.
	CurrentFileName = "CURRENT"
	// ManifestFormatVersion is the version of the manifest format.
	ManifestFormatVersion = 1
)

// ErrNoManifest is returned when nothing has been committed under a base.
var ErrNoManifest = errors.New("no committed manifest")

// Manifest lists the committed intervals of a run.
type Manifest struct {
	FormatVersion int            `json:"format_version"`
	ID            uint64         `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	Base          string         `json:"base"`
	Ranks         int            `json:"ranks"`
	Compression   string         `json:"compression"`
	Intervals     []IntervalInfo `json:"intervals"`
}

// IntervalInfo describes one committed interval.
type IntervalInfo struct {
	Index          int       `json:"index"`
	StartTime      float64   `json:"start_time"`
	K              int       `json:"k"`
	Samples        int       `json:"samples"`
	Closed         bool      `json:"closed"`
	SingularValues []float64 `json:"singular_values"`
	// Blobs holds one blob name per rank.
	Blobs []string `json:"blobs"`
}

// BlobName returns the blob name of an interval basis on a rank.
func BlobName(base string, interval, rank int) string {
	return path.Join(base, fmt.Sprintf("interval-%06d.%06d", interval, rank))
}

func manifestName(base string, id uint64) string {
	return path.Join(base, fmt.Sprintf("manifest-%06d.json", id))
}

func currentName(base string) string {
	return path.Join(base, CurrentFileName)
}

// ReadManifest loads the manifest that CURRENT points to.
func ReadManifest(ctx context.Context, store blobstore.BlobStore, base string) (*Manifest, error) {
	ptr, err := blobstore.Get(ctx, store, currentName(base))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNoManifest
		}
		return nil, err
	}

	name := strings.TrimSpace(string(ptr))
	content, err := blobstore.Get(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", name, err)
	}

	var m Manifest
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", name, err)
	}
	if m.FormatVersion != ManifestFormatVersion {
		return nil, fmt.Errorf("%w: manifest format %d", ErrInvalidVersion, m.FormatVersion)
	}
	return &m, nil
}

// saveManifest writes the manifest blob and then updates CURRENT.
func saveManifest(ctx context.Context, store blobstore.BlobStore, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	name := manifestName(m.Base, m.ID)
	if err := store.Put(ctx, name, data); err != nil {
		return err
	}
	return store.Put(ctx, currentName(m.Base), []byte(name))
}
