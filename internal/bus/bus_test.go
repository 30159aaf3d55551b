package bus_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpipe/docpipe/internal/bus"
)

func TestQueueOfferPollOrder(t *testing.T) {
	q := bus.NewQueue()
	q.Offer(&bus.Message{Type: bus.TypeExtractNLP, DocID: "doc-1"})
	q.Offer(&bus.Message{Type: bus.TypeExtractNLP, DocID: "doc-2"})

	first := q.Poll(time.Second)
	require.NotNil(t, first)
	assert.Equal(t, "doc-1", first.DocID)

	second := q.Poll(time.Second)
	require.NotNil(t, second)
	assert.Equal(t, "doc-2", second.DocID)

	assert.Equal(t, 0, q.Len())
}

func TestQueuePollTimesOutOnEmptyQueue(t *testing.T) {
	q := bus.NewQueue()

	start := time.Now()
	msg := q.Poll(20 * time.Millisecond)
	assert.Nil(t, msg)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueuePollWakesUpOnOffer(t *testing.T) {
	q := bus.NewQueue()

	done := make(chan *bus.Message, 1)
	go func() {
		done <- q.Poll(5 * time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Offer(&bus.Message{Type: bus.TypeShutdown})

	select {
	case msg := <-done:
		require.NotNil(t, msg)
		assert.Equal(t, bus.TypeShutdown, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("poll did not wake up")
	}
}

func TestQueueConcurrentConsumersSeeEveryMessage(t *testing.T) {
	q := bus.NewQueue()
	const total = 100

	var mu sync.Mutex
	seen := make(map[string]struct{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg := q.Poll(100 * time.Millisecond)
				if msg == nil {
					return
				}
				mu.Lock()
				seen[msg.DocID] = struct{}{}
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < total; i++ {
		q.Offer(&bus.Message{Type: bus.TypeExtractNLP, DocID: fmt.Sprintf("doc-%d", i)})
	}

	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, total)
}

func TestWaitUntilEmpty(t *testing.T) {
	q := bus.NewQueue()
	assert.True(t, q.WaitUntilEmpty(10*time.Millisecond))

	q.Offer(&bus.Message{Type: bus.TypeExtractNLP, DocID: "doc-1"})
	assert.False(t, q.WaitUntilEmpty(20*time.Millisecond))

	done := make(chan bool, 1)
	go func() {
		done <- q.WaitUntilEmpty(5 * time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NotNil(t, q.Poll(time.Second))
	q.SignalIfEmpty()

	select {
	case drained := <-done:
		assert.True(t, drained)
	case <-time.After(time.Second):
		t.Fatal("waiter did not wake up")
	}
}
