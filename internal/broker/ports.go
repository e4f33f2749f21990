package broker

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker channel closed")

type Message struct {
	Body          []byte
	CorrelationID string
	ReplyTo       string
}

type Delivery struct {
	Message
	Redelivered bool
	ack         func() error
	nack        func(requeue bool) error
}

func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack отклоняет сообщение. С requeue брокер доставит его снова
// с флагом Redelivered.
func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

type Handler func(ctx context.Context, d Delivery)

// ReplyQueue это эксклюзивная очередь одного RPC-вызова.
type ReplyQueue interface {
	Name() string
	Deliveries() <-chan Message
	// Close удаляет очередь. Повторный вызов безопасен.
	Close() error
}

type Broker interface {
	Publish(ctx context.Context, queue string, msg Message) error
	OpenReplyQueue(ctx context.Context) (ReplyQueue, error)
	// Consume блокируется, пока не отменён ctx или не закрылся канал.
	// Одновременно обрабатывается не больше prefetch сообщений.
	Consume(ctx context.Context, queue string, prefetch int, h Handler) error
}
