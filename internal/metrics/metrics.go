package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	forwarded     map[string]int64
	rejected      map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	breakerStates map[string]string
	transitions   map[string]int64
	startTime     time.Time
}

type Snapshot struct {
	TotalForwarded int64                      `json:"total_forwarded"`
	TotalRejected  int64                      `json:"total_rejected"`
	Uptime         time.Duration              `json:"uptime"`
	Upstreams      map[string]UpstreamMetrics `json:"upstreams"`
}

type UpstreamMetrics struct {
	Forwarded    int64         `json:"forwarded"`
	Rejected     int64         `json:"rejected"`
	BreakerState string        `json:"breaker_state"`
	Transitions  int64         `json:"transitions"`
	AvgResponse  time.Duration `json:"avg_response"`
	P50Response  time.Duration `json:"p50_response"`
	P95Response  time.Duration `json:"p95_response"`
	P99Response  time.Duration `json:"p99_response"`
	StatusCodes  map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		forwarded:     make(map[string]int64),
		rejected:      make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		breakerStates: make(map[string]string),
		transitions:   make(map[string]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementForwarded(upstream string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.forwarded[upstream]++
}

func (m *Metrics) IncrementRejected(upstream string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejected[upstream]++
}

func (m *Metrics) RecordResponse(upstream string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[upstream] = append(m.responseTimes[upstream], duration)

	if len(m.responseTimes[upstream]) > 1000 {
		m.responseTimes[upstream] = m.responseTimes[upstream][1:]
	}

	if m.statusCodes[upstream] == nil {
		m.statusCodes[upstream] = make(map[int]int64)
	}
	m.statusCodes[upstream][statusCode]++
}

func (m *Metrics) RecordBreakerState(upstream string, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.breakerStates[upstream] = state
	m.transitions[upstream]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:    time.Since(m.startTime),
		Upstreams: make(map[string]UpstreamMetrics),
	}

	// Collect all upstream names seen by any event type
	names := make(map[string]bool)
	for name := range m.forwarded {
		names[name] = true
	}
	for name := range m.rejected {
		names[name] = true
	}
	for name := range m.responseTimes {
		names[name] = true
	}
	for name := range m.breakerStates {
		names[name] = true
	}

	for name := range names {
		snap.TotalForwarded += m.forwarded[name]
		snap.TotalRejected += m.rejected[name]

		um := UpstreamMetrics{
			Forwarded:    m.forwarded[name],
			Rejected:     m.rejected[name],
			BreakerState: m.breakerStates[name],
			Transitions:  m.transitions[name],
			StatusCodes:  m.statusCodes[name],
		}

		durations := m.responseTimes[name]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			um.AvgResponse = average(sorted)
			um.P50Response = percentile(sorted, 0.50)
			um.P95Response = percentile(sorted, 0.95)
			um.P99Response = percentile(sorted, 0.99)
		}

		snap.Upstreams[name] = um
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
