package broker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ReplyQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rq, err := m.OpenReplyQueue(ctx)
	require.NoError(t, err)
	assert.True(t, m.HasQueue(rq.Name()))

	require.NoError(t, m.Publish(ctx, rq.Name(), Message{Body: []byte("hi"), CorrelationID: "c1"}))

	select {
	case msg := <-rq.Deliveries():
		assert.Equal(t, "c1", msg.CorrelationID)
		assert.Equal(t, []byte("hi"), msg.Body)
	case <-time.After(time.Second):
		t.Fatal("reply not delivered")
	}

	require.NoError(t, rq.Close())
	require.NoError(t, rq.Close())
	assert.False(t, m.HasQueue(rq.Name()))

	// как у default exchange: в удалённую очередь сообщение просто теряется
	assert.NoError(t, m.Publish(ctx, rq.Name(), Message{Body: []byte("late")}))
}

func TestMemory_ReplyQueuesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.OpenReplyQueue(ctx)
	require.NoError(t, err)
	b, err := m.OpenReplyQueue(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.Name(), b.Name())

	require.NoError(t, m.Publish(ctx, b.Name(), Message{CorrelationID: "for-b"}))

	select {
	case <-a.Deliveries():
		t.Fatal("a must not receive b's reply")
	case msg := <-b.Deliveries():
		assert.Equal(t, "for-b", msg.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestMemory_ConsumeRespectsPrefetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	require.NoError(t, m.DeclareWorkQueue("work"))
	for i := 0; i < 20; i++ {
		require.NoError(t, m.Publish(ctx, "work", Message{Body: []byte{byte(i)}}))
	}

	var (
		inFlight, maxInFlight atomic.Int32
		handled               sync.WaitGroup
	)
	handled.Add(20)

	done := make(chan error, 1)
	go func() {
		done <- m.Consume(ctx, "work", 3, func(_ context.Context, d Delivery) {
			defer handled.Done()
			n := inFlight.Add(1)
			for {
				cur := maxInFlight.Load()
				if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			_ = d.Ack()
		})
	}()

	handled.Wait()
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
	assert.Equal(t, int64(20), m.Acked())
}

func TestMemory_Redeliver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	require.NoError(t, m.DeclareWorkQueue("work"))
	require.NoError(t, m.Redeliver(ctx, "work", Message{Body: []byte("x")}))

	got := make(chan Delivery, 1)
	go m.Consume(ctx, "work", 1, func(_ context.Context, d Delivery) { got <- d })

	select {
	case d := <-got:
		assert.True(t, d.Redelivered)
	case <-time.After(time.Second):
		t.Fatal("not delivered")
	}
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.DeclareWorkQueue("work"))
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.Publish(context.Background(), "work", Message{}), ErrClosed)
	_, err := m.OpenReplyQueue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemory_NackRequeueRedelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()
	require.NoError(t, m.DeclareWorkQueue("work"))
	require.NoError(t, m.Publish(ctx, "work", Message{Body: []byte("job"), CorrelationID: "c1"}))

	var (
		mu   sync.Mutex
		seen []bool
	)
	done := make(chan struct{})
	go func() {
		_ = m.Consume(ctx, "work", 1, func(_ context.Context, d Delivery) {
			mu.Lock()
			seen = append(seen, d.Redelivered)
			first := len(seen) == 1
			mu.Unlock()

			if first {
				assert.NoError(t, d.Nack(true))
				return
			}
			assert.NoError(t, d.Ack())
			close(done)
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("message was not redelivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, seen)
	assert.Equal(t, int64(1), m.Nacked())
	assert.Equal(t, int64(1), m.Acked())
}
