// Package generator produces simulated attack events on a fixed interval.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"attackwatch/internal/attacks"
)

// Classifier synthesizes an unsaved event.
type Classifier interface {
	RandomEndpoints() (src, dst string)
	Classify(srcIP, dstIP string) *attacks.AttackEvent
}

// Writer persists a new event.
type Writer interface {
	Insert(ctx context.Context, e *attacks.AttackEvent) error
}

// Reader loads the stored, display-ready form of an event.
type Reader interface {
	Get(ctx context.Context, id int64) (*attacks.AttackEvent, error)
}

// Generator runs one generation cycle per interval. Each cycle allocates an
// eventId, persists the event, reads it back and broadcasts it as
// new-attack, strictly in that order. A failed cycle is logged and skipped;
// the schedule continues.
//
// The next tick is armed only after the current cycle returns, so cycles
// never overlap.
type Generator struct {
	classifier Classifier
	allocator  attacks.Allocator
	writer     Writer
	reader     Reader
	publisher  attacks.Publisher
	interval   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	cycleMu sync.Mutex
	running bool
	gen     uint64
	timer   *time.Timer
	ctx     context.Context
	wg      sync.WaitGroup
}

func New(classifier Classifier, allocator attacks.Allocator, writer Writer, reader Reader,
	publisher attacks.Publisher, interval time.Duration, logger *zap.Logger) *Generator {
	return &Generator{
		classifier: classifier,
		allocator:  allocator,
		writer:     writer,
		reader:     reader,
		publisher:  publisher,
		interval:   interval,
		logger:     logger,
	}
}

// Start arms the timer. Calling Start on a running generator cancels the
// pending tick and arms a fresh one, so the next cycle is a full interval
// away. Cycles run with ctx's values but are not cancelled by it; use Stop.
func (g *Generator) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	restart := g.running
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.running = true
	g.gen++
	g.ctx = context.WithoutCancel(ctx)
	g.schedule(g.gen)
	if restart {
		g.logger.Info("attack generator restarted", zap.Duration("interval", g.interval))
		return
	}
	g.logger.Info("attack generator started", zap.Duration("interval", g.interval))
}

// Stop prevents any further tick from starting a cycle. A cycle already in
// flight is allowed to finish; Wait blocks until it has.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return
	}
	g.running = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.logger.Info("attack generator stopped")
}

// Wait blocks until no cycle is running.
func (g *Generator) Wait() {
	g.wg.Wait()
}

func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Run starts the generator and stops it when ctx is done, returning after
// the in-flight cycle completes.
func (g *Generator) Run(ctx context.Context) error {
	g.Start(ctx)
	<-ctx.Done()
	g.Stop()
	g.Wait()
	return nil
}

// schedule must be called with mu held.
func (g *Generator) schedule(gen uint64) {
	g.timer = time.AfterFunc(g.interval, func() { g.tick(gen) })
}

func (g *Generator) tick(gen uint64) {
	g.mu.Lock()
	if !g.running || gen != g.gen {
		g.mu.Unlock()
		return
	}
	ctx := g.ctx
	g.wg.Add(1)
	g.mu.Unlock()

	// A restart can arm a new tick while an earlier cycle is still running.
	g.cycleMu.Lock()
	if _, err := g.Cycle(ctx); err != nil {
		g.logger.Error("generation cycle failed", zap.Error(err))
	}
	g.cycleMu.Unlock()
	g.wg.Done()

	g.mu.Lock()
	if g.running && gen == g.gen {
		g.schedule(gen)
	}
	g.mu.Unlock()
}

// Cycle runs one generation pass and returns the broadcast event.
func (g *Generator) Cycle(ctx context.Context) (*attacks.AttackEvent, error) {
	src, dst := g.classifier.RandomEndpoints()
	e := g.classifier.Classify(src, dst)

	id, err := g.allocator.Allocate(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate event id: %w", err)
	}
	e.EventID = id
	if err := g.writer.Insert(ctx, e); err != nil {
		if errors.Is(err, attacks.ErrSequenceConflict) {
			g.logger.Warn("allocated event id already stored", zap.Int64("event_id", id))
		}
		return nil, fmt.Errorf("insert event %d: %w", id, err)
	}

	stored, err := g.reader.Get(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("read back event %d: %w", id, err)
	}
	if g.publisher != nil {
		g.publisher.Broadcast(attacks.EventNewAttack, stored)
	}
	g.logger.Info("new attack generated",
		zap.Int64("id", stored.ID),
		zap.Int64("event_id", stored.EventID),
		zap.String("label", stored.LabelName),
		zap.String("risk", string(stored.RiskLevel)),
	)
	return stored, nil
}
