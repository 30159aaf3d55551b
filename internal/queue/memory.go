package queue

import (
	"context"
	"sync"
)

// MemoryBroker holds in-process queues by name, mirroring the rename
// semantics of the redis backend. Used by tests and single-process runs.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string][]string
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string][]string)}
}

// Queue returns the queue registered under name, creating it empty if
// it does not exist yet.
func (b *MemoryBroker) Queue(name string) *MemoryQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.queues[name]; !found {
		b.queues[name] = nil
	}
	return &MemoryQueue{broker: b, name: name}
}

// MemoryQueue is the in-process DocumentQueue implementation.
type MemoryQueue struct {
	broker *MemoryBroker
	name   string
}

var _ DocumentQueue = (*MemoryQueue)(nil)

func (q *MemoryQueue) Name() string {
	return q.name
}

func (q *MemoryQueue) Size(_ context.Context) (int64, error) {
	q.broker.mu.Lock()
	defer q.broker.mu.Unlock()
	return int64(len(q.broker.queues[q.name])), nil
}

func (q *MemoryQueue) Offer(_ context.Context, path string) error {
	q.broker.mu.Lock()
	defer q.broker.mu.Unlock()
	q.broker.queues[q.name] = append(q.broker.queues[q.name], path)
	return nil
}

func (q *MemoryQueue) Poll(_ context.Context) (string, error) {
	q.broker.mu.Lock()
	defer q.broker.mu.Unlock()
	entries := q.broker.queues[q.name]
	if len(entries) == 0 {
		return "", nil
	}
	q.broker.queues[q.name] = entries[1:]
	return entries[0], nil
}

func (q *MemoryQueue) Scan(_ context.Context, fn func(path string) error) error {
	q.broker.mu.Lock()
	entries := make([]string, len(q.broker.queues[q.name]))
	copy(entries, q.broker.queues[q.name])
	q.broker.mu.Unlock()

	for _, entry := range entries {
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func (q *MemoryQueue) RemoveDuplicatePaths(_ context.Context) (int, error) {
	q.broker.mu.Lock()
	defer q.broker.mu.Unlock()

	seen := make(map[string]struct{})
	deduped := make([]string, 0, len(q.broker.queues[q.name]))
	removed := 0
	for _, path := range q.broker.queues[q.name] {
		if _, found := seen[path]; found {
			removed++
			continue
		}
		seen[path] = struct{}{}
		deduped = append(deduped, path)
	}
	q.broker.queues[q.name] = deduped
	return removed, nil
}

func (q *MemoryQueue) Delete(_ context.Context) error {
	q.broker.mu.Lock()
	defer q.broker.mu.Unlock()
	delete(q.broker.queues, q.name)
	return nil
}

func (q *MemoryQueue) Rename(_ context.Context, name string) error {
	q.broker.mu.Lock()
	defer q.broker.mu.Unlock()
	q.broker.queues[name] = q.broker.queues[q.name]
	delete(q.broker.queues, q.name)
	q.name = name
	return nil
}

func (q *MemoryQueue) Close() error {
	return nil
}

// Entries returns a copy of the queue content, for tests.
func (q *MemoryQueue) Entries() []string {
	q.broker.mu.Lock()
	defer q.broker.mu.Unlock()
	entries := make([]string, len(q.broker.queues[q.name]))
	copy(entries, q.broker.queues[q.name])
	return entries
}
