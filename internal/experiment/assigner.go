package experiment

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/eshop-platform/inventory-service/internal/strategy"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const assignmentTTL = 24 * time.Hour

// Assigner answers which reservation strategy a given subject should use.
type Assigner interface {
	Assign(ctx context.Context, subjectID string) string
}

// Static always returns the configured strategy.
type Static struct {
	Strategy string
}

func (s Static) Assign(context.Context, string) string { return s.Strategy }

// Split buckets subjects into the pessimistic arm by a hash percentage.
// Assignments stick via Redis so a subject keeps its arm across calls; when
// Redis is unavailable the hash alone decides, which yields the same answer
// anyway.
type Split struct {
	PessimisticPercent int
	rdb                *redis.Client
	log                *zap.SugaredLogger
}

func NewSplit(pessimisticPercent int, rdb *redis.Client, log *zap.SugaredLogger) *Split {
	return &Split{PessimisticPercent: pessimisticPercent, rdb: rdb, log: log}
}

func (a *Split) Assign(ctx context.Context, subjectID string) string {
	if a.rdb != nil {
		if v, err := a.rdb.Get(ctx, assignmentKey(subjectID)).Result(); err == nil && v != "" {
			return v
		}
	}
	choice := strategy.NameOptimistic
	if int(bucket(subjectID)) < a.PessimisticPercent {
		choice = strategy.NamePessimistic
	}
	if a.rdb != nil {
		if err := a.rdb.Set(ctx, assignmentKey(subjectID), choice, assignmentTTL).Err(); err != nil {
			a.log.Warnf("store assignment %s: %v", subjectID, err)
		}
	}
	return choice
}

func bucket(subjectID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(subjectID))
	return h.Sum32() % 100
}

func assignmentKey(subjectID string) string { return "assignment:" + subjectID }
