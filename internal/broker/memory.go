package broker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Memory это брокер в памяти процесса с семантикой default exchange:
// сообщение в несуществующую очередь молча отбрасывается.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan Delivery
	closed bool
	acked  atomic.Int64
	nacked atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{queues: make(map[string]chan Delivery)}
}

func (m *Memory) DeclareWorkQueue(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.queues[name]; !ok {
		m.queues[name] = make(chan Delivery, 1024)
	}
	return nil
}

func (m *Memory) Publish(ctx context.Context, queue string, msg Message) error {
	return m.deliver(ctx, queue, Delivery{Message: msg})
}

// Redeliver кладёт сообщение с флагом redelivered, как после падения потребителя.
func (m *Memory) Redeliver(ctx context.Context, queue string, msg Message) error {
	return m.deliver(ctx, queue, Delivery{Message: msg, Redelivered: true})
}

func (m *Memory) deliver(ctx context.Context, queue string, d Delivery) error {
	m.mu.Lock()
	q, ok := m.queues[queue]
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !ok {
		return nil
	}

	d.ack = func() error {
		m.acked.Add(1)
		return nil
	}
	msg := d.Message
	d.nack = func(requeue bool) error {
		m.nacked.Add(1)
		if !requeue {
			return nil
		}
		// в отдельной горутине: обработчик может держать единственный слот очереди
		go func() { _ = m.deliver(context.Background(), queue, Delivery{Message: msg, Redelivered: true}) }()
		return nil
	}

	select {
	case q <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type memReplyQueue struct {
	m    *Memory
	name string
	out  chan Message
	done chan struct{}
	once sync.Once
}

func (m *Memory) OpenReplyQueue(_ context.Context) (ReplyQueue, error) {
	name := "amq.gen-" + uuid.NewString()
	in := make(chan Delivery, 16)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.queues[name] = in
	m.mu.Unlock()

	rq := &memReplyQueue{m: m, name: name, out: make(chan Message, 16), done: make(chan struct{})}
	go func() {
		defer close(rq.out)
		for {
			select {
			case d := <-in:
				select {
				case rq.out <- d.Message:
				case <-rq.done:
					return
				}
			case <-rq.done:
				return
			}
		}
	}()
	return rq, nil
}

func (q *memReplyQueue) Name() string               { return q.name }
func (q *memReplyQueue) Deliveries() <-chan Message { return q.out }

func (q *memReplyQueue) Close() error {
	q.once.Do(func() {
		q.m.mu.Lock()
		delete(q.m.queues, q.name)
		q.m.mu.Unlock()
		close(q.done)
	})
	return nil
}

// HasQueue сообщает, существует ли очередь.
func (m *Memory) HasQueue(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.queues[name]
	return ok
}

func (m *Memory) Acked() int64 {
	return m.acked.Load()
}

func (m *Memory) Nacked() int64 {
	return m.nacked.Load()
}

func (m *Memory) Consume(ctx context.Context, queue string, prefetch int, h Handler) error {
	if err := m.DeclareWorkQueue(queue); err != nil {
		return err
	}

	m.mu.Lock()
	q := m.queues[queue]
	m.mu.Unlock()

	if prefetch < 1 {
		prefetch = 1
	}

	return dispatch(ctx, prefetch, func() (Delivery, bool) {
		select {
		case d, ok := <-q:
			return d, ok
		case <-ctx.Done():
			return Delivery{}, false
		}
	}, h)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
