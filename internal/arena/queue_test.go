package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ReleasesBatchInJoinOrder(t *testing.T) {
	var sizes []int
	q := NewQueue(3, func(n int) { sizes = append(sizes, n) })

	_, batch, _ := q.Push(QueueEntry{Identity: "a", AgentName: "A"})
	assert.Nil(t, batch)
	_, batch, _ = q.Push(QueueEntry{Identity: "b", AgentName: "B"})
	assert.Nil(t, batch)
	size, batch, err := q.Push(QueueEntry{Identity: "c", AgentName: "C"})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, 0, size)
	assert.Equal(t, []string{"A", "B", "C"}, []string{batch[0].AgentName, batch[1].AgentName, batch[2].AgentName})
	assert.Equal(t, []int{1, 2, 0}, sizes)
}

func TestQueue_RemoveByIdentity(t *testing.T) {
	q := NewQueue(5, nil)
	q.Push(QueueEntry{Identity: "a", AgentName: "first"})
	q.Push(QueueEntry{Identity: "b", AgentName: "other"})
	q.Push(QueueEntry{Identity: "a", AgentName: "second"})

	size, ok := q.Remove("a")
	assert.True(t, ok)
	assert.Equal(t, 2, size)

	size, ok = q.Remove("nobody")
	assert.False(t, ok)
	assert.Equal(t, 2, size)

	_, batch, _ := q.Push(QueueEntry{Identity: "c"})
	assert.Nil(t, batch)
	q.Push(QueueEntry{Identity: "d"})
	_, batch, _ = q.Push(QueueEntry{Identity: "e"})
	require.Len(t, batch, 5)
	assert.Equal(t, "first", batch[0].AgentName, "the earlier entry of a survives")
}

func TestQueue_ConcurrentJoinsFormWholeBatches(t *testing.T) {
	q := NewQueue(5, nil)
	var mu sync.Mutex
	batches := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, batch, _ := q.Push(QueueEntry{})
			if batch != nil {
				mu.Lock()
				batches++
				mu.Unlock()
				if len(batch) != 5 {
					t.Errorf("batch of %d", len(batch))
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, batches)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_CloseRefusesPushes(t *testing.T) {
	var sizes []int
	q := NewQueue(2, func(n int) { sizes = append(sizes, n) })
	_, _, err := q.Push(QueueEntry{Identity: "a"})
	require.NoError(t, err)

	q.Close()
	assert.Equal(t, 0, q.Len())

	size, batch, err := q.Push(QueueEntry{Identity: "b"})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Nil(t, batch)
	assert.Equal(t, 0, size)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []int{1}, sizes)
}
