package broker

import (
	"context"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
)

type Client struct {
	conn *amqp.Connection

	pubMu sync.Mutex
	pubCh *amqp.Channel
}

func Connect(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	return &Client{conn: conn, pubCh: ch}, nil
}

func (c *Client) Close() error {
	return multierr.Combine(c.pubCh.Close(), c.conn.Close())
}

// DeclareWorkQueue объявляет durable очередь задач.
func (c *Client) DeclareWorkQueue(name string) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	_, err := c.pubCh.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

func (c *Client) Publish(ctx context.Context, queue string, msg Message) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	err := c.pubCh.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.CorrelationID,
		ReplyTo:       msg.ReplyTo,
		Body:          msg.Body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

type replyQueue struct {
	ch    *amqp.Channel
	name  string
	tag   string
	out   chan Message
	once  sync.Once
	close error
}

func (c *Client) OpenReplyQueue(ctx context.Context) (ReplyQueue, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("reply channel: %w", err)
	}

	// имя генерирует сервер, очередь эксклюзивная и удаляется вместе с потребителем
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}

	tag := "rpc-" + q.Name
	msgs, err := ch.Consume(q.Name, tag, true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}

	rq := &replyQueue{ch: ch, name: q.Name, tag: tag, out: make(chan Message, 1)}
	go func() {
		defer close(rq.out)
		for d := range msgs {
			rq.out <- Message{Body: d.Body, CorrelationID: d.CorrelationId, ReplyTo: d.ReplyTo}
		}
	}()

	return rq, nil
}

func (q *replyQueue) Name() string               { return q.name }
func (q *replyQueue) Deliveries() <-chan Message { return q.out }

func (q *replyQueue) Close() error {
	q.once.Do(func() {
		_, delErr := q.ch.QueueDelete(q.name, false, false, false)
		q.close = multierr.Combine(delErr, q.ch.Close())
		// читатель мог уйти по таймауту; дочитываем, чтобы горутина завершилась
		go func() {
			for range q.out {
			}
		}()
	})
	return q.close
}

func (c *Client) Consume(ctx context.Context, queue string, prefetch int, h Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer channel: %w", err)
	}
	defer ch.Close()

	if prefetch < 1 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	log.Printf("[broker] consuming queue=%s prefetch=%d", queue, prefetch)

	return dispatch(ctx, prefetch, func() (Delivery, bool) {
		d, ok := <-msgs
		if !ok {
			return Delivery{}, false
		}
		return Delivery{
			Message:     Message{Body: d.Body, CorrelationID: d.CorrelationId, ReplyTo: d.ReplyTo},
			Redelivered: d.Redelivered,
			ack:         func() error { return d.Ack(false) },
			nack:        func(requeue bool) error { return d.Nack(false, requeue) },
		}, true
	}, h)
}

// dispatch раздаёт сообщения обработчикам, не больше limit одновременно.
func dispatch(ctx context.Context, limit int, next func() (Delivery, bool), h Handler) error {
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, limit)
		in  = make(chan Delivery)
		end = make(chan struct{})
	)

	go func() {
		defer close(end)
		for {
			d, ok := next()
			if !ok {
				return
			}
			select {
			case in <- d:
			case <-ctx.Done():
				return
			}
		}
	}()

	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-end:
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrClosed
		case d := <-in:
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer func() {
					<-sem
					wg.Done()
				}()
				h(ctx, d)
			}()
		}
	}
}
