package leads

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryRepository keeps leads in a map. It backs local development and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
	}
}

func (r *InMemoryRepository) Insert(ctx context.Context, lead *Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[lead.ID] = lead.Clone()
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, notFound(id)
	}
	return lead.Clone(), nil
}

func (r *InMemoryRepository) Replace(ctx context.Context, lead *Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.leads[lead.ID]
	if !ok {
		return notFound(lead.ID)
	}
	next := lead.Clone()
	next.Name, next.Email, next.Phone, next.Message = existing.Name, existing.Email, existing.Phone, existing.Message
	next.PropertyType, next.BudgetRange, next.PreferredLocality = existing.PropertyType, existing.BudgetRange, existing.PreferredLocality
	next.Source = existing.Source
	next.Intake = existing.Intake
	next.CreatedAt = existing.CreatedAt
	r.leads[lead.ID] = next
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leads[id]; !ok {
		return notFound(id)
	}
	delete(r.leads, id)
	return nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, int, error) {
	filter = filter.normalize()

	r.mu.RLock()
	matched := make([]*Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		if filter.matches(lead) {
			matched = append(matched, lead.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if filter.SortDesc {
			return lessBy(filter.SortBy, matched[j], matched[i])
		}
		return lessBy(filter.SortBy, matched[i], matched[j])
	})

	total := len(matched)
	start := filter.offset()
	if start >= total {
		return []*Lead{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// lessBy orders by field, breaking ties by id so pages are stable.
func lessBy(field SortField, a, b *Lead) bool {
	var cmp int
	switch field {
	case SortByUpdatedAt:
		cmp = a.UpdatedAt.Compare(b.UpdatedAt)
	case SortByName:
		cmp = strings.Compare(a.Name, b.Name)
	case SortByStatus:
		cmp = strings.Compare(string(a.Status), string(b.Status))
	case SortByPriority:
		cmp = strings.Compare(string(a.Priority), string(b.Priority))
	default:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	}
	if cmp == 0 {
		return a.ID < b.ID
	}
	return cmp < 0
}

// UpdateMany is not atomic across ids; each record is updated independently.
func (r *InMemoryRepository) UpdateMany(ctx context.Context, ids []string, changes Changes, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := 0
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		lead, ok := r.leads[id]
		if !ok {
			continue
		}
		changes.Apply(lead)
		lead.UpdatedAt = now
		matched++
	}
	return matched, nil
}

func (r *InMemoryRepository) StatusCounts(ctx context.Context) (map[Status]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int64)
	for _, lead := range r.leads {
		counts[lead.Status]++
	}
	return counts, nil
}

func (r *InMemoryRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, lead := range r.leads {
		if !lead.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) Distribution(ctx context.Context, dim Dimension) ([]Bucket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, lead := range r.leads {
		counts[dim.key(lead)]++
	}
	buckets := make([]Bucket, 0, len(counts))
	for key, n := range counts {
		buckets = append(buckets, Bucket{Key: key, Count: n})
	}
	return buckets, nil
}
