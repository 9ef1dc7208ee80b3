package runtime

import (
	"math"
	"sort"
	"sync"
	"time"

	codecpkg "github.com/drblury/maestro/internal/runtime/codec"
	protocolpkg "github.com/drblury/maestro/internal/runtime/protocol"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// CallStats tracks per-service processing statistics, maintained by the
// worker loop and surfaced through introspection.
type CallStats struct {
	mu sync.Mutex `json:"-"`

	service string `json:"-"`

	Processed           uint64    `json:"processed"`
	Failed              uint64    `json:"failed"`
	TotalProcessingTime int64     `json:"total_processing_time_ns"`
	LastProcessedAt     time.Time `json:"last_processed_at"`
	LastAction          string    `json:"last_action,omitempty"`

	Latency    LatencyMetrics    `json:"latency"`
	Throughput ThroughputMetrics `json:"throughput"`
	Errors     ErrorBreakdown    `json:"errors"`
	Resource   ResourceUsage     `json:"resource"`

	latencyWindow    *latencyWindow    `json:"-"`
	throughputWindow *throughputWindow `json:"-"`
	resourceSampler  *resourceTracker  `json:"-"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ThroughputMetrics struct {
	CurrentRPS       float64 `json:"current_rps"`
	WindowSeconds    float64 `json:"window_seconds"`
	MessagesInWindow uint64  `json:"messages_in_window"`
	TotalMessages    uint64  `json:"total_messages"`
}

// ErrorBreakdown counts ERROR replies by wire code.
type ErrorBreakdown struct {
	UnknownAction uint64 `json:"unknown_action"`
	HandlerError  uint64 `json:"handler_error"`
	HandlerPanic  uint64 `json:"handler_panic"`
	BadPayload    uint64 `json:"bad_payload"`
	Other         uint64 `json:"other"`
	LastCode      string `json:"last_code,omitempty"`
}

// Record classifies one ERROR reply code. An empty code means success and
// is not counted.
func (e *ErrorBreakdown) Record(code string) {
	switch code {
	case "":
		return
	case protocolpkg.CodeUnknownAction:
		e.UnknownAction++
	case protocolpkg.CodeHandlerError:
		e.HandlerError++
	case protocolpkg.CodeHandlerPanic:
		e.HandlerPanic++
	case protocolpkg.CodeBadPayload:
		e.BadPayload++
	default:
		e.Other++
	}
	e.LastCode = code
}

func newCallStats(service string, sampler *resourceTracker) *CallStats {
	return &CallStats{
		service:          service,
		resourceSampler:  sampler,
		latencyWindow:    newLatencyWindow(latencySampleSize),
		throughputWindow: newThroughputWindow(throughputWindowSize),
	}
}

// record folds one dispatched message into the statistics. errCode is the
// wire code of the ERROR reply, or empty on success.
func (c *CallStats) record(action string, duration time.Duration, errCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Processed++
	if errCode != "" {
		c.Failed++
	}
	c.TotalProcessingTime += int64(duration)
	c.LastProcessedAt = time.Now().UTC()
	c.LastAction = action

	if c.latencyWindow != nil {
		c.latencyWindow.Add(duration)
		snapshot := c.latencyWindow.Snapshot()
		snapshot.LastNs = int64(duration)
		if c.Processed > 0 {
			snapshot.AverageNs = c.TotalProcessingTime / int64(c.Processed)
		}
		c.Latency = snapshot
	}

	if c.throughputWindow != nil {
		snapshot := c.throughputWindow.AddAndSnapshot(time.Now())
		c.Throughput.CurrentRPS = snapshot.CurrentRPS
		c.Throughput.WindowSeconds = snapshot.WindowSeconds
		c.Throughput.MessagesInWindow = uint64(snapshot.Count)
	}
	c.Throughput.TotalMessages = c.Processed

	c.Errors.Record(errCode)

	if c.resourceSampler != nil {
		c.Resource = c.resourceSampler.Snapshot()
	}
}

// snapshot returns a detached copy safe to hand to introspection readers.
func (c *CallStats) snapshot() CallStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CallStats{
		service:             c.service,
		Processed:           c.Processed,
		Failed:              c.Failed,
		TotalProcessingTime: c.TotalProcessingTime,
		LastProcessedAt:     c.LastProcessedAt,
		LastAction:          c.LastAction,
		Latency:             c.Latency,
		Throughput:          c.Throughput,
		Errors:              c.Errors,
		Resource:            c.Resource,
	}
}

func (c *CallStats) MarshalJSON() ([]byte, error) {
	snap := c.snapshot()

	type Alias CallStats
	return codecpkg.Marshal((*Alias)(&snap))
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var metrics LatencyMetrics
	if lw == nil {
		return metrics
	}
	if lw.filled == 0 {
		metrics.LastNs = lw.last
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.AverageNs = sum / int64(len(samples))
	metrics.LastNs = lw.last
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{
		horizon: horizon,
		samples: make([]time.Time, 0, 64),
	}
}

func (tw *throughputWindow) AddAndSnapshot(now time.Time) throughputSnapshot {
	if tw == nil {
		return throughputSnapshot{}
	}
	tw.samples = append(tw.samples, now)
	tw.cleanup(now)
	return tw.snapshot(now)
}

func (tw *throughputWindow) cleanup(now time.Time) {
	if tw == nil || len(tw.samples) == 0 {
		return
	}
	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		copy(tw.samples, tw.samples[idx:])
		tw.samples = tw.samples[:len(tw.samples)-idx]
	}
}

func (tw *throughputWindow) snapshot(now time.Time) throughputSnapshot {
	if tw == nil || len(tw.samples) == 0 {
		return throughputSnapshot{}
	}
	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	count := len(tw.samples)
	return throughputSnapshot{
		Count:         count,
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(count) / span.Seconds(),
	}
}
