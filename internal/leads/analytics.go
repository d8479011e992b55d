package leads

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// PipelineStats summarises the whole lead set. Only five statuses are reported
// by name; leads in the other three still count towards Total.
type PipelineStats struct {
	Total          int64  `json:"total"`
	New            int64  `json:"new"`
	Contacted      int64  `json:"contacted"`
	InProgress     int64  `json:"in_progress"`
	Converted      int64  `json:"converted"`
	Closed         int64  `json:"closed"`
	ThisMonth      int64  `json:"this_month"`
	ConversionRate string `json:"conversion_rate"`
}

// Report bundles the stats with both distributions.
type Report struct {
	Stats      *PipelineStats `json:"stats"`
	ByLocality []Bucket       `json:"by_locality"`
	ByBudget   []Bucket       `json:"by_budget"`
}

// PipelineStats counts leads over the live store. Concurrent writes may be
// partially reflected; there is no snapshot.
func (s *Service) PipelineStats(ctx context.Context) (stats *PipelineStats, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.pipeline_stats")
	defer s.finish(span, "pipeline_stats", time.Now(), &err)

	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	thisMonth, err := s.repo.CountCreatedSince(ctx, MonthStart(s.now(), s.location))
	if err != nil {
		return nil, err
	}

	stats = &PipelineStats{
		New:        counts[StatusNew],
		Contacted:  counts[StatusContacted],
		InProgress: counts[StatusInProgress],
		Converted:  counts[StatusConverted],
		Closed:     counts[StatusClosed],
		ThisMonth:  thisMonth,
	}
	for _, n := range counts {
		stats.Total += n
	}
	stats.ConversionRate = ConversionRate(stats.Converted, stats.Total)
	span.SetAttributes(attribute.Int64("leads.total", stats.Total))
	return stats, nil
}

// DistributionByLocality groups leads by preferred locality, largest first.
func (s *Service) DistributionByLocality(ctx context.Context) ([]Bucket, error) {
	return s.distribution(ctx, DimensionLocality)
}

// DistributionByBudget groups leads by budget range, largest first.
func (s *Service) DistributionByBudget(ctx context.Context) ([]Bucket, error) {
	return s.distribution(ctx, DimensionBudget)
}

func (s *Service) distribution(ctx context.Context, dim Dimension) (buckets []Bucket, err error) {
	ctx, span := leadsTracer.Start(ctx, "leads.distribution")
	defer s.finish(span, "distribution", time.Now(), &err)
	span.SetAttributes(attribute.String("leads.dimension", string(dim)))

	buckets, err = s.repo.Distribution(ctx, dim)
	if err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []Bucket{}
	}
	SortBuckets(buckets)
	return buckets, nil
}

// Report collects stats and both distributions.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	stats, err := s.PipelineStats(ctx)
	if err != nil {
		return nil, err
	}
	byLocality, err := s.DistributionByLocality(ctx)
	if err != nil {
		return nil, err
	}
	byBudget, err := s.DistributionByBudget(ctx)
	if err != nil {
		return nil, err
	}
	return &Report{Stats: stats, ByLocality: byLocality, ByBudget: byBudget}, nil
}

// ConversionRate formats converted/total as a percentage with one decimal,
// or "0%" when there are no leads.
func ConversionRate(converted, total int64) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(converted)/float64(total)*100)
}

// MonthStart is midnight on the first day of now's month in loc.
func MonthStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// SortBuckets orders by count descending, then key ascending.
func SortBuckets(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
}
