// Package broadcast fans attack events out to connected dashboard clients
// and to external relays.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message is one broadcast as delivered to subscribers. Data holds the
// payload already encoded as JSON so it is marshalled once per broadcast.
type Message struct {
	Name string
	Data json.RawMessage
}

// Sink receives every broadcast after local subscribers have been offered
// it. Publish must not block for long; errors are logged and dropped.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
}

// Subscription is one connected client.
type Subscription struct {
	ID string
	C  <-chan Message

	ch      chan Message
	dropped atomic.Int64
}

// Dropped reports how many messages this subscriber missed because its
// buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// DefaultBuffer is the per-subscriber buffer length.
const DefaultBuffer = 16

// Distributor delivers each broadcast to every current subscriber,
// at most once and without waiting on slow readers. Messages reach each
// subscriber in the order Broadcast was called.
type Distributor struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	sinks  []Sink
	buffer int
	logger *zap.Logger
}

func NewDistributor(logger *zap.Logger, sinks ...Sink) *Distributor {
	return &Distributor{
		subs:   make(map[string]*Subscription),
		sinks:  sinks,
		buffer: DefaultBuffer,
		logger: logger,
	}
}

// Subscribe registers a new subscriber. The caller must Unsubscribe it.
func (d *Distributor) Subscribe() *Subscription {
	ch := make(chan Message, d.buffer)
	s := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}
	d.mu.Lock()
	d.subs[s.ID] = s
	n := len(d.subs)
	d.mu.Unlock()
	d.logger.Debug("subscriber connected", zap.String("subscriber", s.ID), zap.Int("subscribers", n))
	return s
}

// Unsubscribe removes s and closes its channel. It is safe to call more
// than once.
func (d *Distributor) Unsubscribe(s *Subscription) {
	d.mu.Lock()
	_, ok := d.subs[s.ID]
	if ok {
		delete(d.subs, s.ID)
		close(s.ch)
	}
	n := len(d.subs)
	d.mu.Unlock()
	if ok {
		d.logger.Debug("subscriber disconnected",
			zap.String("subscriber", s.ID),
			zap.Int64("dropped", s.Dropped()),
			zap.Int("subscribers", n),
		)
	}
}

func (d *Distributor) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Broadcast encodes payload and offers it to every subscriber and sink.
// It never blocks on a subscriber and never returns an error; failures are
// logged.
func (d *Distributor) Broadcast(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("encode broadcast", zap.String("event", name), zap.Error(err))
		return
	}
	msg := Message{Name: name, Data: data}

	// Holding mu across the fan-out keeps per-subscriber order equal to
	// Broadcast call order.
	d.mu.Lock()
	for _, s := range d.subs {
		select {
		case s.ch <- msg:
		default:
			s.dropped.Add(1)
		}
	}
	sinks := d.sinks
	d.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Publish(context.Background(), msg); err != nil {
			d.logger.Warn("relay publish failed",
				zap.String("sink", sink.Name()),
				zap.String("event", name),
				zap.Error(err),
			)
		}
	}
}

// Close disconnects every subscriber.
func (d *Distributor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, s := range d.subs {
		delete(d.subs, id)
		close(s.ch)
	}
}
