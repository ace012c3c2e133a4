// Package filesystem exposes the reMarkable Cloud file system through two
// independent read paths: a flat document listing turned into a linked
// Snapshot, and the recursive hash tree behind it.
package filesystem

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rmbridge/rmbridge/internal/logging"
	"github.com/rmbridge/rmbridge/internal/metrics"
	"github.com/rmbridge/rmbridge/pkg/transport"
	"github.com/rmbridge/rmbridge/pkg/tree"
)

const listingPath = "/doc/v2/files"

// sourceTag identifies this client family to the listing endpoint.
const sourceTag = "RoR-Browser"

// SnapshotFetchError reports a failed document listing round trip.
type SnapshotFetchError struct {
	StatusCode int
	Body       string
}

func (e *SnapshotFetchError) Error() string {
	return fmt.Sprintf("document listing failed (%d): %s", e.StatusCode, e.Body)
}

// FileSystem reads the cloud file system for one session.
type FileSystem struct {
	cloud    transport.Client
	resolver *tree.Resolver
}

// New creates a FileSystem over an internal-cloud client and a tree
// resolver bound to the same session.
func New(cloud transport.Client, resolver *tree.Resolver) *FileSystem {
	return &FileSystem{cloud: cloud, resolver: resolver}
}

// Snapshot fetches the flat document listing and links it into a
// Snapshot. The listing and the hash tree are separate encodings of the
// same state; Snapshot never touches signed URLs.
func (fs *FileSystem) Snapshot(ctx context.Context) (*Snapshot, error) {
	resp, err := fs.cloud.Get(ctx, listingPath, map[string]string{
		"rm-source": sourceTag,
	})
	if err != nil {
		return nil, fmt.Errorf("document listing: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SnapshotFetchError{StatusCode: resp.StatusCode, Body: resp.Text()}
	}

	var payloads []entryPayload
	if err := resp.JSON(&payloads); err != nil {
		return nil, fmt.Errorf("document listing: parse response: %w", err)
	}

	snapshot := buildSnapshot(payloads)
	metrics.SetSnapshotEntries(snapshot.Size())
	logging.Info("snapshot fetched",
		zap.Int("documents", len(snapshot.documents)),
		zap.Int("folders", len(snapshot.folders)),
	)
	return snapshot, nil
}

// Document fetches a fresh snapshot and looks up one document by id.
// Returns nil when the document does not exist.
func (fs *FileSystem) Document(ctx context.Context, id string) (*Document, error) {
	snapshot, err := fs.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Document(id), nil
}

// Folder fetches a fresh snapshot and looks up one folder by id. Returns
// nil when the folder does not exist.
func (fs *FileSystem) Folder(ctx context.Context, id string) (*Folder, error) {
	snapshot, err := fs.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Folder(id), nil
}

// HashTree resolves the full hash tree from the root alias down.
func (fs *FileSystem) HashTree(ctx context.Context) (*tree.Entry, error) {
	return fs.resolver.Root(ctx)
}
