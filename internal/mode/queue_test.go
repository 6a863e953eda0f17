package mode

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()

	for _, op := range []string{"create", "update", "delete"} {
		q.Enqueue(Task{Op: op})
	}
	assert.Equal(t, 3, q.Len())

	for i, want := range []string{"create", "update", "delete"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.Op)
		assert.Equal(t, int64(i+1), got.Seq)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestTaskQueue_AssignsIDs(t *testing.T) {
	q := newTaskQueue()

	a := q.Enqueue(Task{})
	b := q.Enqueue(Task{ID: "custom"})
	assert.Equal(t, "task-1", a.ID)
	assert.Equal(t, "custom", b.ID)
	assert.Equal(t, int64(2), b.Seq)
}

func TestTaskQueue_ConcurrentEnqueueKeepsSeqOrder(t *testing.T) {
	q := newTaskQueue()
	noop := func(context.Context, Backend) error { return nil }

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(Task{Work: noop})
		}()
	}
	wg.Wait()

	var last int64
	for {
		task, ok := q.TryDequeue()
		if !ok {
			break
		}
		assert.Greater(t, task.Seq, last)
		last = task.Seq
	}
	assert.Equal(t, int64(50), last)
}

func TestBus_SubscribeAndCancel(t *testing.T) {
	b := newBus(1, quietLogger())

	ch, cancel := b.subscribe()
	b.publish(ModeChanged{Mode: Remote})
	// Buffer full: dropped, not blocking.
	b.publish(ModeChanged{Mode: Local})

	ev := <-ch
	assert.Equal(t, Remote, ev.Mode)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	b.close()
	late, _ := b.subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed bus yields a closed channel")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "switching_to_remote", SwitchingToRemote.String())
	text, err := Remote.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "remote", string(text))
	assert.Equal(t, Remote, SwitchingToLocal.mode())
	assert.Equal(t, Local, SwitchingToRemote.mode())
}
