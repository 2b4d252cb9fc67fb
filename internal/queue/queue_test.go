package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensebridge/internal/models"
)

func TestSubmitAndDrainFIFO(t *testing.T) {
	q := New(8)

	for i := 0; i < 5; i++ {
		err := q.Submit(models.NewEventIntent(fmt.Sprintf("event_%d", i), 0.9, ""))
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		intent := <-q.C()
		assert.Equal(t, fmt.Sprintf("event_%d", i), intent.EventType)
	}
}

func TestSubmitRejectsNewestOnOverflow(t *testing.T) {
	q := New(2)

	require.NoError(t, q.Submit(models.NewEventIntent("first", 1, "")))
	require.NoError(t, q.Submit(models.NewEventIntent("second", 1, "")))

	err := q.Submit(models.NewEventIntent("third", 1, ""))
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), q.Dropped())

	// the oldest submissions survive; the newest was rejected
	assert.Equal(t, "first", (<-q.C()).EventType)
	assert.Equal(t, "second", (<-q.C()).EventType)
}

func TestSubmitNeverBlocks(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Submit(models.NewEventIntent("a", 1, "")))

	// with no consumer, repeated submits must return immediately
	for i := 0; i < 100; i++ {
		_ = q.Submit(models.NewEventIntent("b", 1, ""))
	}
	assert.Equal(t, uint64(100), q.Dropped())
	assert.Equal(t, 1, q.Len())
}

func TestConcurrentProducersAllAccounted(t *testing.T) {
	q := New(64)

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Submit(models.NewEventIntent("sound", 0.8, "")); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(producers*perProducer-accepted), q.Dropped())
	assert.Equal(t, accepted, q.Len())
}
