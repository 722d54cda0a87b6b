package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for ticket actions and the
// per-tenant scheduler.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	actionCount    map[string]int64
	actionLatency  map[string]time.Duration
	schedulerDepth map[string]int
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		actionCount:    make(map[string]int64),
		actionLatency:  make(map[string]time.Duration),
		schedulerDepth: make(map[string]int),
	}
}

// RecordRequest increments counters for HTTP requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordAction tracks a lifecycle action (create, claim, transfer, close)
// and its latency.
func (m *Metrics) RecordAction(action string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionCount[action]++
	m.actionLatency[action] += duration
}

// RecordSchedulerDepth records the observed queue depth for a tenant.
func (m *Metrics) RecordSchedulerDepth(tenantID string, depth int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedulerDepth[tenantID] = depth
}

// ActionCount returns the observed count for an action.
func (m *Metrics) ActionCount(action string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actionCount[action]
}
