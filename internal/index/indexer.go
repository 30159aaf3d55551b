package index

import (
	"context"
	"time"
)

// Document is a source document held by the index.
type Document struct {
	ID            string
	RootID        string
	Path          string
	Name          string
	Language      string
	Content       string
	ContentType   string
	ContentLength *int64
	CreationDate  *time.Time
}

// BulkDoc is one entry of a bulk write: an opaque source document
// associated with an id and an optional routing key.
type BulkDoc struct {
	ID      string
	Routing string
	Source  any
}

// Indexer is the read/write capability consumed by the extraction
// worker, the queue filter and the batch runner.
type Indexer interface {
	// Get fetches a document by id; routing is the sharding hint for
	// nested documents. A missing document is (nil, nil), not an error.
	Get(ctx context.Context, index, id, routing string) (*Document, error)
	// BulkAdd writes the given documents in a single bulk request.
	BulkAdd(ctx context.Context, index string, docs []BulkDoc) error
	// Search runs one query and returns the matching page of documents.
	Search(ctx context.Context, index, query string, from, size int) ([]Document, error)
	// ExistingPaths reports which of the given paths are already
	// present in the index.
	ExistingPaths(ctx context.Context, index string, paths []string) (map[string]struct{}, error)
}

// ExtractedStreamer adapts an Indexer to the queue filter's
// already-indexed predicate for one project.
type ExtractedStreamer struct {
	indexer Indexer
	project string
}

func NewExtractedStreamer(indexer Indexer, project string) *ExtractedStreamer {
	return &ExtractedStreamer{indexer: indexer, project: project}
}

func (s *ExtractedStreamer) ExistingPaths(ctx context.Context, paths []string) (map[string]struct{}, error) {
	return s.indexer.ExistingPaths(ctx, s.project, paths)
}
