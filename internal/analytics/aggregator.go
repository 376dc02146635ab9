package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nyanglife/catshop/pkg/kafka"
)

type AggregatedStats struct {
	TotalSearches      int64            `json:"total_searches"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	ZeroResultCount    int64            `json:"zero_result_count"`
	ErrorCount         int64            `json:"error_count"`
	Outcomes           map[string]int64 `json:"outcomes"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       int64            `json:"p50_latency_ms"`
	P95LatencyMs       int64            `json:"p95_latency_ms"`
	P99LatencyMs       int64            `json:"p99_latency_ms"`
	TopKeywords        []KeywordCount   `json:"top_keywords"`
	ZeroResultKeywords []KeywordCount   `json:"zero_result_keywords"`
	SearchesPerMinute  float64          `json:"searches_per_minute"`
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

// maxLatencySamples bounds memory; older samples are discarded first.
const maxLatencySamples = 10000

// Aggregator folds SearchEvents into running totals.
type Aggregator struct {
	mu                 sync.RWMutex
	totalSearches      int64
	cacheHits          int64
	cacheMisses        int64
	zeroResults        int64
	errors             int64
	outcomes           map[string]int64
	latencies          []int64
	keywordCounts      map[string]int64
	zeroResultKeywords map[string]int64
	startTime          time.Time
	now                func() time.Time
	logger             *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:           make(map[string]int64),
		latencies:          make([]int64, 0, 1024),
		keywordCounts:      make(map[string]int64),
		zeroResultKeywords: make(map[string]int64),
		startTime:          time.Now(),
		now:                time.Now,
		logger:             slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable messages
// are logged and skipped so one bad record cannot stall the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode search event", "error", err)
			return nil
		}
		if event.Type != EventProductSearch {
			agg.logger.Debug("ignoring event", "type", event.Type)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	a.outcomes[event.Outcome]++
	if event.Outcome != OutcomeOK {
		a.errors++
		return
	}

	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.keywordCounts[event.Keyword]++
	if event.ResultCount == 0 {
		a.zeroResults++
		a.zeroResultKeywords[event.Keyword]++
	}
	if len(a.latencies) >= maxLatencySamples {
		a.latencies = append(a.latencies[:0], a.latencies[len(a.latencies)/2:]...)
	}
	a.latencies = append(a.latencies, event.LatencyMs)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		ErrorCount:      a.errors,
		Outcomes:        make(map[string]int64, len(a.outcomes)),
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopKeywords = topN(a.keywordCounts, 10)
	stats.ZeroResultKeywords = topN(a.zeroResultKeywords, 10)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.SearchesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then keyword, so ties are stable across calls.
func topN(counts map[string]int64, n int) []KeywordCount {
	result := make([]KeywordCount, 0, len(counts))
	for kw, count := range counts {
		result = append(result, KeywordCount{Keyword: kw, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Keyword < result[j].Keyword
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
