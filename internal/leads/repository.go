package leads

import (
	"context"
	"time"
)

// Repository is the record store the lead core runs against. Implementations
// return ErrLeadNotFound (possibly wrapped) for unknown ids and wrap driver
// failures in *StoreError.
type Repository interface {
	Insert(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, id string) (*Lead, error)
	// Replace persists every mutable field of lead. Identity, intake metadata
	// and created_at are write-once and left as stored. The last writer wins.
	Replace(ctx context.Context, lead *Lead) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*Lead, int, error)
	// UpdateMany applies changes to every listed id and reports how many matched.
	UpdateMany(ctx context.Context, ids []string, changes Changes, now time.Time) (int, error)

	Aggregates
}

// Aggregates are the grouped counts the analytics report is built from.
type Aggregates interface {
	StatusCounts(ctx context.Context) (map[Status]int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	Distribution(ctx context.Context, dim Dimension) ([]Bucket, error)
}

// Dimension is a field the distribution report can group by.
type Dimension string

const (
	DimensionLocality Dimension = "preferred_locality"
	DimensionBudget   Dimension = "budget_range"
)

func (d Dimension) key(l *Lead) string {
	switch d {
	case DimensionLocality:
		return string(l.PreferredLocality)
	case DimensionBudget:
		return string(l.BudgetRange)
	}
	return ""
}

func (d Dimension) valid() bool {
	return d == DimensionLocality || d == DimensionBudget
}

// Bucket is one group of a distribution report.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}
