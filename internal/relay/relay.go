// Package relay forwards distributor messages to external brokers so other
// consoles and pipelines see the same attack feed.
package relay

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"attackwatch/internal/broadcast"
)

// ErrQueueFull is returned by Publish when the relay is behind.
var ErrQueueFull = errors.New("relay queue full")

const queueSize = 256

type sender interface {
	send(ctx context.Context, msg broadcast.Message) error
	close() error
}

// queue decouples Distributor.Broadcast from broker latency. Publish only
// enqueues; Run drains the queue until its context is done.
type queue struct {
	name    string
	ch      chan broadcast.Message
	sender  sender
	logger  *zap.Logger
	dropped atomic.Int64
}

func newQueue(name string, s sender, logger *zap.Logger) *queue {
	return &queue{
		name:   name,
		ch:     make(chan broadcast.Message, queueSize),
		sender: s,
		logger: logger.With(zap.String("relay", name)),
	}
}

func (q *queue) Name() string { return q.name }

func (q *queue) Publish(_ context.Context, msg broadcast.Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped reports how many messages were refused because the queue was full.
func (q *queue) Dropped() int64 {
	return q.dropped.Load()
}

// Run sends queued messages until ctx is done, then closes the broker
// connection. Send failures are logged and the message is discarded.
func (q *queue) Run(ctx context.Context) error {
	defer func() {
		if err := q.sender.close(); err != nil {
			q.logger.Warn("close relay", zap.Error(err))
		}
	}()
	q.logger.Info("relay started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("relay stopped", zap.Int64("dropped", q.Dropped()))
			return nil
		case msg := <-q.ch:
			if err := q.sender.send(ctx, msg); err != nil && ctx.Err() == nil {
				q.logger.Warn("relay send failed", zap.String("event", msg.Name), zap.Error(err))
			}
		}
	}
}
