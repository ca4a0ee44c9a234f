// Package audit batches activity log events off the request path.
//
// Callers Enqueue events and never wait on storage. A single consumer
// goroutine accumulates events and hands them to a Sink either when a batch
// fills up or when MaxWait has passed. A failed write drops that batch.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/obs"
	"github.com/google/uuid"
)

const (
	DefaultBatchSize    = 50
	DefaultMaxWait      = 5 * time.Second
	DefaultQueueSize    = 1024
	DefaultFlushTimeout = 10 * time.Second
)

// Sink persists one batch. It must write all events or none.
type Sink interface {
	Write(ctx context.Context, events []domain.AuditEvent) error
}

type Config struct {
	BatchSize    int
	MaxWait      time.Duration
	QueueSize    int
	FlushTimeout time.Duration
}

type Pipeline struct {
	Sink    Sink
	Logger  *slog.Logger
	Metrics *obs.Metrics
	Config  Config

	queue   chan domain.AuditEvent
	stopped atomic.Bool
	// Enqueue holds a read lock from the stopped check through the send, so
	// once Stop has the write lock every accepted event is already queued.
	sendMu sync.RWMutex

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewPipeline fills zero config values with the package defaults.
func NewPipeline(sink Sink, logger *slog.Logger, metrics *obs.Metrics, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		Sink:    sink,
		Logger:  logger,
		Metrics: metrics,
		Config:  cfg,
		queue:   make(chan domain.AuditEvent, cfg.QueueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calling it more than once is a no-op.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		go p.run()
		p.Logger.Info("audit pipeline started",
			"batch_size", p.Config.BatchSize, "max_wait", p.Config.MaxWait, "queue_size", p.Config.QueueSize)
	})
}

// Enqueue hands an event to the pipeline without blocking. It reports false
// when the event was dropped because the queue is full or the pipeline has
// been stopped.
func (p *Pipeline) Enqueue(e domain.AuditEvent) bool {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Level == "" {
		e.Level = domain.LevelInfo
	}

	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.stopped.Load() {
		p.drop(e, "stopped")
		return false
	}
	select {
	case p.queue <- e:
		return true
	default:
		p.drop(e, "queue full")
		return false
	}
}

var (
	ErrStopped    = errors.New("audit pipeline stopped")
	ErrBacklogged = errors.New("audit queue nearly full")
)

// Ready reports whether the pipeline is accepting events with headroom left.
// A queue above 90% capacity counts as not ready.
func (p *Pipeline) Ready() error {
	if p.stopped.Load() {
		return ErrStopped
	}
	if len(p.queue)*10 >= cap(p.queue)*9 {
		return ErrBacklogged
	}
	return nil
}

func (p *Pipeline) drop(e domain.AuditEvent, why string) {
	p.Metrics.AuditEvents("dropped", 1)
	p.Logger.Warn("audit event dropped", "reason", why, "action", e.Action, "actor_id", e.ActorID)
}

// Stop drains the queue, flushes what is left and waits for the consumer to
// exit or for ctx to end.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.sendMu.Lock()
		p.stopped.Store(true)
		p.sendMu.Unlock()
		close(p.stopCh)
	})

	// Start was never called; flush inline so nothing queued is lost.
	p.startOnce.Do(func() {
		go func() {
			defer close(p.doneCh)
			p.flush(p.drain(nil))
		}()
	})

	select {
	case <-p.doneCh:
		p.Logger.Info("audit pipeline stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.Config.MaxWait)
	defer ticker.Stop()

	batch := make([]domain.AuditEvent, 0, p.Config.BatchSize)
	for {
		select {
		case e := <-p.queue:
			batch = append(batch, e)
			if len(batch) >= p.Config.BatchSize {
				batch = p.flush(batch)
				ticker.Reset(p.Config.MaxWait)
			}
		case <-ticker.C:
			batch = p.flush(batch)
		case <-p.stopCh:
			p.flush(p.drain(batch))
			return
		}
	}
}

// drain pulls everything currently queued, flushing full batches on the way.
func (p *Pipeline) drain(batch []domain.AuditEvent) []domain.AuditEvent {
	for {
		select {
		case e := <-p.queue:
			batch = append(batch, e)
			if len(batch) >= p.Config.BatchSize {
				batch = p.flush(batch)
			}
		default:
			return batch
		}
	}
}

// flush writes the batch and returns an empty slice ready for reuse.
func (p *Pipeline) flush(batch []domain.AuditEvent) []domain.AuditEvent {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Config.FlushTimeout)
	defer cancel()

	if err := p.Sink.Write(ctx, batch); err != nil {
		p.Metrics.AuditEvents("failed", len(batch))
		p.Logger.Error("audit batch write failed", "events", len(batch), "err", err)
	} else {
		p.Metrics.AuditEvents("written", len(batch))
		p.Logger.Debug("audit batch written", "events", len(batch))
	}
	return batch[:0]
}
