package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpirySweeper periodically releases reservations whose TTL has passed.
// Optional: a deployment that prefers passive expiry simply never starts
// one.
type ExpirySweeper struct {
	svc      *ReservationService
	interval time.Duration
	batch    int
	log      *zap.SugaredLogger

	stop chan struct{}
	done chan struct{}
}

func NewExpirySweeper(svc *ReservationService, interval time.Duration, batch int, log *zap.SugaredLogger) *ExpirySweeper {
	return &ExpirySweeper{
		svc:      svc,
		interval: interval,
		batch:    batch,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled.
func (w *ExpirySweeper) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		w.log.Infof("expiry sweeper started, interval=%s", w.interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				n, err := w.svc.SweepExpired(ctx, w.batch)
				if err != nil {
					w.log.Errorf("sweep expired: %v", err)
					continue
				}
				if n > 0 {
					w.log.Infof("released %d expired reservations", n)
				}
			}
		}
	}()
}

func (w *ExpirySweeper) Stop() {
	close(w.stop)
	<-w.done
}
