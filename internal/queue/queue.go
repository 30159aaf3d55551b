// Package queue holds the durable document queue and the pre-flight
// filter that cleans it before extraction workers consume it.
package queue

import "context"

// DocumentQueue is a named, durable FIFO of document paths awaiting
// processing. Identity for deduplication is the path, not the position.
type DocumentQueue interface {
	Name() string
	Size(ctx context.Context) (int64, error)
	Offer(ctx context.Context, path string) error
	// Poll consumes and returns the head entry. An empty string with a
	// nil error means the queue is empty.
	Poll(ctx context.Context) (string, error)
	// Scan streams every entry in order without consuming it, in
	// bounded batches under the hood.
	Scan(ctx context.Context, fn func(path string) error) error
	// RemoveDuplicatePaths drops entries whose path repeats, keeping
	// the first occurrence, and returns the number removed.
	RemoveDuplicatePaths(ctx context.Context) (int, error)
	Delete(ctx context.Context) error
	// Rename atomically moves the queue under a new name, replacing
	// any queue already holding that name.
	Rename(ctx context.Context, name string) error
	Close() error
}
