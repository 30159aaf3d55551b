package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/docpipe/docpipe/pkg/metrics"
	"go.uber.org/zap"
)

const defaultFilterBatch = 512

// ExtractedStreamer reports which of the given paths the index already
// holds. Implemented by the index package.
type ExtractedStreamer interface {
	ExistingPaths(ctx context.Context, paths []string) (map[string]struct{}, error)
}

// QueueFactory creates a queue under the given name, in the same
// backing store as the queue being filtered.
type QueueFactory func(name string) DocumentQueue

// Filter reduces a pending-work queue to the entries that genuinely
// still need processing: structural duplicates go first, then entries
// the index already knows. The result replaces the original queue
// under its name in a single rename, so readers never observe a
// half-filtered queue.
type Filter struct {
	queue     DocumentQueue
	streamer  ExtractedStreamer
	newQueue  QueueFactory
	batchSize int
	log       *zap.SugaredLogger
}

func NewFilter(queue DocumentQueue, streamer ExtractedStreamer, newQueue QueueFactory, batchSize int) *Filter {
	if batchSize <= 0 {
		batchSize = defaultFilterBatch
	}
	return &Filter{
		queue:     queue,
		streamer:  streamer,
		newQueue:  newQueue,
		batchSize: batchSize,
		log:       zap.S().Named("filter"),
	}
}

// Run executes one filter pass and returns the total number of entries
// removed. An empty queue is a no-op, not an error. Any failure before
// the final rename leaves the original queue untouched.
func (f *Filter) Run(ctx context.Context) (int, error) {
	size, err := f.queue.Size(ctx)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		f.log.Infof("filter empty queue %s nothing to do", f.queue.Name())
		return 0, nil
	}

	duplicates, err := f.queue.RemoveDuplicatePaths(ctx)
	if err != nil {
		return 0, err
	}
	f.log.Infof("removed %d duplicate paths in queue %s", duplicates, f.queue.Name())
	metrics.AddQueueReductionMetric("duplicates", duplicates)

	initialSize, err := f.queue.Size(ctx)
	if err != nil {
		return 0, err
	}

	staging := f.newQueue(fmt.Sprintf("%s:filter:%d", f.queue.Name(), time.Now().UnixNano()))
	if err := f.filterInto(ctx, staging); err != nil {
		// fail closed: drop the staging queue, the original stays valid
		if delErr := staging.Delete(ctx); delErr != nil {
			f.log.Warnf("deleting staging queue %s: %v", staging.Name(), delErr)
		}
		return 0, err
	}

	stagingSize, err := staging.Size(ctx)
	if err != nil {
		return 0, err
	}

	// RENAME atomically replaces its destination, so swapping the
	// staging queue in never leaves the original name dangling; a bare
	// delete only happens when there is nothing to swap in
	originalName := f.queue.Name()
	if stagingSize > 0 {
		f.log.Infof("rename queue %s to %s", staging.Name(), originalName)
		if err := staging.Rename(ctx, originalName); err != nil {
			if delErr := staging.Delete(ctx); delErr != nil {
				f.log.Warnf("deleting staging queue %s: %v", staging.Name(), delErr)
			}
			return 0, err
		}
	} else {
		if err := f.queue.Delete(ctx); err != nil {
			return 0, err
		}
		f.log.Infof("deleted queue %s", originalName)
	}

	extracted := int(initialSize - stagingSize)
	f.log.Infof("removed %d already extracted documents from queue %s", extracted, originalName)
	metrics.AddQueueReductionMetric("extracted", extracted)

	if err := staging.Close(); err != nil {
		f.log.Warnf("closing staging queue: %v", err)
	}
	if err := f.queue.Close(); err != nil {
		f.log.Warnf("closing queue: %v", err)
	}
	return duplicates + extracted, nil
}

// filterInto streams the queue through the already-indexed predicate
// in bounded batches, offering the survivors to the staging queue.
func (f *Filter) filterInto(ctx context.Context, staging DocumentQueue) error {
	batch := make([]string, 0, f.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		existing, err := f.streamer.ExistingPaths(ctx, batch)
		if err != nil {
			return fmt.Errorf("checking extracted paths: %w", err)
		}
		for _, path := range batch {
			if _, found := existing[path]; found {
				continue
			}
			if err := staging.Offer(ctx, path); err != nil {
				return err
			}
		}
		batch = batch[:0]
		return nil
	}

	err := f.queue.Scan(ctx, func(path string) error {
		batch = append(batch, path)
		if len(batch) >= f.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}
