package service

import (
	"context"
	"errors"
	"time"

	"github.com/eshop-platform/inventory-service/internal/event"
	"github.com/eshop-platform/inventory-service/internal/experiment"
	"github.com/eshop-platform/inventory-service/internal/model"
	"github.com/eshop-platform/inventory-service/internal/repo"
	"github.com/eshop-platform/inventory-service/internal/strategy"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidRequest means the caller passed an unusable argument.
var ErrInvalidRequest = errors.New("invalid reservation request")

type ReserveRequest struct {
	SKUID      string
	Quantity   int64
	ReservedBy string
	TTLSeconds int
}

// ReserveResult is what callers branch on: Success false with a Reason is a
// rejection, not a fault.
type ReserveResult struct {
	ReservationID  string `json:"reservationId,omitempty"`
	Success        bool   `json:"success"`
	AvailableStock int64  `json:"availableStock"`
	Reason         string `json:"error,omitempty"`
}

// ReservationService orchestrates strategy selection and event emission.
// Every successful state change appends exactly one outbox row inside the
// strategy's transaction.
type ReservationService struct {
	repo       *repo.Repository
	strategies map[string]strategy.ReservationStrategy
	// lifecycle handles commit/release, identical across variants
	lifecycle  strategy.ReservationStrategy
	assigner   experiment.Assigner
	topics     event.TopicMap
	source     string
	defaultTTL time.Duration
	log        *zap.SugaredLogger
}

func NewReservationService(
	r *repo.Repository,
	opt, pess strategy.ReservationStrategy,
	assigner experiment.Assigner,
	topics event.TopicMap,
	source string,
	defaultTTL time.Duration,
	log *zap.SugaredLogger,
) *ReservationService {
	return &ReservationService{
		repo: r,
		strategies: map[string]strategy.ReservationStrategy{
			opt.Name():  opt,
			pess.Name(): pess,
		},
		lifecycle:  opt,
		assigner:   assigner,
		topics:     topics,
		source:     source,
		defaultTTL: defaultTTL,
		log:        log,
	}
}

func (s *ReservationService) pick(name string) strategy.ReservationStrategy {
	if st, ok := s.strategies[name]; ok {
		return st
	}
	return s.strategies[strategy.NameOptimistic]
}

// Reserve claims stock for a holder. Rejections (insufficient stock,
// unknown SKU, lost optimistic race) come back in the result; only
// infrastructure faults surface as errors.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (ReserveResult, error) {
	if req.SKUID == "" || req.ReservedBy == "" || req.Quantity <= 0 {
		return ReserveResult{}, ErrInvalidRequest
	}
	ttl := s.defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	st := s.pick(s.assigner.Assign(ctx, req.ReservedBy))

	var stock *model.StockItem
	emit := func(tx *gorm.DB, r *model.Reservation, item *model.StockItem) error {
		env, err := event.New(event.TypeReserved, s.source, event.ReservedPayload{
			ReservationID:  r.ID,
			SKUID:          r.SKUID,
			Quantity:       r.Quantity,
			ReservedBy:     r.ReservedBy,
			Strategy:       r.Strategy,
			AvailableStock: item.Available(),
		})
		if err != nil {
			return err
		}
		stock = item
		return s.repo.Outbox.Append(ctx, tx, s.topics.For(event.TypeReserved), env)
	}

	res, err := st.Reserve(ctx, strategy.ReserveRequest{
		SKUID:      req.SKUID,
		Quantity:   req.Quantity,
		ReservedBy: req.ReservedBy,
		TTL:        ttl,
	}, emit)
	if err != nil {
		return classifyReserveFailure(err)
	}
	s.cacheStock(ctx, stock)
	s.log.Infow("stock reserved",
		"reservation_id", res.ReservationID, "sku", req.SKUID,
		"qty", req.Quantity, "strategy", st.Name(), "available", res.AvailableStock)
	return ReserveResult{
		ReservationID:  res.ReservationID,
		Success:        true,
		AvailableStock: res.AvailableStock,
	}, nil
}

func classifyReserveFailure(err error) (ReserveResult, error) {
	var insufficient *repo.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		return ReserveResult{AvailableStock: insufficient.Available, Reason: "insufficient stock"}, nil
	case errors.Is(err, repo.ErrSKUNotFound):
		return ReserveResult{Reason: "sku not found"}, nil
	case errors.Is(err, repo.ErrVersionConflict):
		return ReserveResult{Reason: "stock contention, retry"}, nil
	}
	return ReserveResult{}, err
}

// Commit finalizes a reservation. False means the reservation is absent or
// no longer RESERVED.
func (s *ReservationService) Commit(ctx context.Context, reservationID, orderID string) (bool, error) {
	if reservationID == "" {
		return false, ErrInvalidRequest
	}
	var stock *model.StockItem
	emit := func(tx *gorm.DB, r *model.Reservation, item *model.StockItem) error {
		env, err := event.New(event.TypeCommitted, s.source, event.CommittedPayload{
			ReservationID: r.ID,
			OrderID:       orderID,
		})
		if err != nil {
			return err
		}
		stock = item
		return s.repo.Outbox.Append(ctx, tx, s.topics.For(event.TypeCommitted), env)
	}
	ok, err := s.lifecycle.Commit(ctx, reservationID, orderID, emit)
	if err != nil {
		return false, err
	}
	if ok {
		s.cacheStock(ctx, stock)
		s.log.Infow("reservation committed", "reservation_id", reservationID, "order_id", orderID)
	}
	return ok, nil
}

// Release abandons a reservation and restores its stock. False means the
// reservation is absent or no longer RESERVED, so stock is never credited
// twice.
func (s *ReservationService) Release(ctx context.Context, reservationID, reason string) (bool, error) {
	if reservationID == "" {
		return false, ErrInvalidRequest
	}
	var stock *model.StockItem
	emit := func(tx *gorm.DB, r *model.Reservation, item *model.StockItem) error {
		env, err := event.New(event.TypeReleased, s.source, event.ReleasedPayload{
			ReservationID: r.ID,
			Reason:        reason,
		})
		if err != nil {
			return err
		}
		stock = item
		return s.repo.Outbox.Append(ctx, tx, s.topics.For(event.TypeReleased), env)
	}
	ok, err := s.lifecycle.Release(ctx, reservationID, reason, emit)
	if err != nil {
		return false, err
	}
	if ok {
		s.cacheStock(ctx, stock)
		s.log.Infow("reservation released", "reservation_id", reservationID, "reason", reason)
	}
	return ok, nil
}

// GetStock reads the SKU counters, cache first.
func (s *ReservationService) GetStock(ctx context.Context, skuID string) (*repo.StockSnapshot, error) {
	if snap, err := s.repo.GetCachedStock(ctx, skuID); err == nil {
		return snap, nil
	}
	item, err := s.repo.Ledger.Get(ctx, s.repo.DB(ctx), skuID, false)
	if err != nil {
		return nil, err
	}
	s.cacheStock(ctx, item)
	return &repo.StockSnapshot{
		SKUID:     item.SKUID,
		Available: item.Available(),
		Reserved:  item.Reserved,
		Total:     item.Quantity,
	}, nil
}

// Restock adds units to a SKU, creating it on first sight.
func (s *ReservationService) Restock(ctx context.Context, skuID string, qty int64) (*repo.StockSnapshot, error) {
	if skuID == "" || qty <= 0 {
		return nil, ErrInvalidRequest
	}
	var item *model.StockItem
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = s.repo.Ledger.Restock(ctx, tx, skuID, qty)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cacheStock(ctx, item)
	return &repo.StockSnapshot{
		SKUID:     item.SKUID,
		Available: item.Available(),
		Reserved:  item.Reserved,
		Total:     item.Quantity,
	}, nil
}

// SweepExpired releases RESERVED rows past their TTL, reusing the normal
// release path so each one emits its outbox event. Returns how many rows
// were released.
func (s *ReservationService) SweepExpired(ctx context.Context, limit int) (int, error) {
	rows, err := s.repo.Reservations.FindExpired(ctx, s.repo.DB(ctx), time.Now(), limit)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, r := range rows {
		ok, err := s.Release(ctx, r.ID, "expired")
		if err != nil {
			s.log.Errorf("sweep release %s: %v", r.ID, err)
			continue
		}
		if ok {
			released++
		}
	}
	return released, nil
}

func (s *ReservationService) cacheStock(ctx context.Context, item *model.StockItem) {
	if item == nil {
		return
	}
	if err := s.repo.CacheStock(ctx, item); err != nil {
		s.log.Warnf("cache stock %s: %v", item.SKUID, err)
	}
}
