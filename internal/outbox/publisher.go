package outbox

import (
	"context"
	"time"

	"github.com/eshop-platform/inventory-service/internal/config"
	"github.com/eshop-platform/inventory-service/internal/model"
	"go.uber.org/zap"
)

// Store is the outbox table surface the publisher needs.
type Store interface {
	PollOutbox(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error)
	ClaimOutbox(ctx context.Context, id uint64) (bool, error)
	MarkOutboxSent(ctx context.Context, id uint64) error
	MarkOutboxFailed(ctx context.Context, id uint64) error
	ReleaseStaleOutboxLocks(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Bus is the event-bus contract: publish by topic, success or failure.
type Bus interface {
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
}

// Publisher drains the outbox on a fixed interval. Per row the state
// machine is: unsent+unlocked -> unsent+locked -> sent (terminal) or back
// to unsent+unlocked with attempts incremented. The conditional claim keeps
// two publisher instances off the same row.
type Publisher struct {
	store Store
	bus   Bus
	cfg   config.OutboxConfig
	log   *zap.SugaredLogger

	stop chan struct{}
	done chan struct{}
}

func NewPublisher(store Store, bus Bus, cfg config.OutboxConfig, log *zap.SugaredLogger) *Publisher {
	return &Publisher{
		store: store,
		bus:   bus,
		cfg:   cfg,
		log:   log,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the poll loop until Stop is called or ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.cfg.PollInterval())
		defer ticker.Stop()
		p.log.Infof("outbox publisher started, interval=%s batch=%d", p.cfg.PollInterval(), p.cfg.BatchSize)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				p.Tick(ctx)
			}
		}
	}()
}

// Stop shuts the loop down and waits for the in-flight tick to finish.
func (p *Publisher) Stop() {
	close(p.stop)
	<-p.done
}

// Tick runs one poll/claim/publish pass. Exported so tests can drive the
// publisher deterministically without the ticker.
func (p *Publisher) Tick(ctx context.Context) {
	if n, err := p.store.ReleaseStaleOutboxLocks(ctx, p.cfg.LockTimeout()); err != nil {
		p.log.Errorf("release stale locks: %v", err)
	} else if n > 0 {
		p.log.Warnf("released %d stale outbox locks", n)
	}

	evts, err := p.store.PollOutbox(ctx, p.cfg.BatchSize, p.cfg.MaxAttempts)
	if err != nil {
		p.log.Errorf("poll outbox: %v", err)
		return
	}
	for _, evt := range evts {
		claimed, err := p.store.ClaimOutbox(ctx, evt.ID)
		if err != nil {
			p.log.Errorf("claim outbox id=%d: %v", evt.ID, err)
			continue
		}
		if !claimed {
			// another instance got there first
			continue
		}
		p.deliver(ctx, evt)
	}
}

func (p *Publisher) deliver(ctx context.Context, evt model.OutboxEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout())
	err := p.bus.PublishEvent(pubCtx, evt)
	cancel()
	if err != nil {
		p.log.Warnf("publish id=%d topic=%s attempt=%d: %v", evt.ID, evt.Topic, evt.Attempts+1, err)
		if err := p.store.MarkOutboxFailed(ctx, evt.ID); err != nil {
			p.log.Errorf("mark failed id=%d: %v", evt.ID, err)
		}
		return
	}
	if err := p.store.MarkOutboxSent(ctx, evt.ID); err != nil {
		p.log.Errorf("mark sent id=%d: %v", evt.ID, err)
		return
	}
	p.log.Infof("event %d sent to %s", evt.ID, evt.Topic)
}
