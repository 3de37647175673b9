package queue

//go:generate mockgen -source=queue.go -destination=../mock/queue.go -package=mock

import (
	"context"
	"errors"
)

var (
	// ErrConnection is returned when the queue cannot be resolved. It is fatal to a watch.
	ErrConnection = errors.New("queue connection error")
	// ErrQueueGone is returned by FetchBatch when the queue disappeared after it was resolved.
	ErrQueueGone = errors.New("queue does not exist")
)

// RawMessage is an undecoded message as delivered by the queue.
type RawMessage struct {
	Id            string
	Body          string
	ReceiptHandle string
}

// Source fetches pending messages and acknowledges consumed ones.
type Source interface {
	// FetchBatch returns zero or more pending messages. An empty batch is not an error.
	FetchBatch(ctx context.Context) ([]RawMessage, error)
	// Delete acknowledges a message. Deleting an already deleted message succeeds.
	Delete(ctx context.Context, message RawMessage) error
}
