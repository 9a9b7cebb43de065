package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hackgods/clinic-slot-queue/internal/booking"
)

type OperationMetrics struct {
	Total     atomic.Int64
	Success   atomic.Int64
	Refused   atomic.Int64
	Transient atomic.Int64
	Error     atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

// Record classifies err by booking error kind. Refusals (not found,
// conflict, unavailable) are expected under load and are not errors.
func (om *OperationMetrics) Record(latency time.Duration, err error) {
	om.Total.Add(1)

	switch kind := booking.Kind(err); {
	case err == nil:
		om.Success.Add(1)
	case errors.Is(kind, booking.ErrTransient):
		om.Transient.Add(1)
	case kind != nil:
		om.Refused.Add(1)
	default:
		om.Error.Add(1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, worst time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	worst = latencies[len(latencies)-1]
	return avg, p50, p95, worst
}

type Metrics struct {
	Booking   OperationMetrics
	Cancel    OperationMetrics
	Complete  OperationMetrics
	ReadQueue OperationMetrics
}

func printOperationReport(name string, om *OperationMetrics) {
	total := om.Total.Load()
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	avg, p50, p95, worst := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", om.Success.Load(), pct(om.Success.Load()))
	if n := om.Refused.Load(); n > 0 {
		fmt.Printf("  Refused: %d (%.1f%%)\n", n, pct(n))
	}
	if n := om.Transient.Load(); n > 0 {
		fmt.Printf("  Transient: %d (%.1f%%)\n", n, pct(n))
	}
	if n := om.Error.Load(); n > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", n, pct(n))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Microsecond), p50.Round(time.Microsecond),
		p95.Round(time.Microsecond), worst.Round(time.Microsecond))
	fmt.Println()
}
