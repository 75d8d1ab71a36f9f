package metrics

import (
	"sync"
	"time"
)

// Metrics collects per-run pipeline counters for the monitoring endpoints.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	ArticlesFetched        int64
	ArticlesSelected       int64
	LinkResolutionFailures int64
	FilterParseFallbacks   int64
	IntegrityFallbacks     int64
	PushesSucceeded        int64
	PushesFailed           int64

	// Timings
	LastRunDuration  time.Duration
	TotalRunDuration time.Duration
	RunCount         int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddArticlesFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesFetched += int64(n)
}

func (m *Metrics) AddArticlesSelected(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesSelected += int64(n)
}

func (m *Metrics) IncrementLinkResolutionFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkResolutionFailures++
}

func (m *Metrics) IncrementFilterParseFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilterParseFallbacks++
}

func (m *Metrics) IncrementIntegrityFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IntegrityFallbacks++
}

func (m *Metrics) IncrementPushesSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PushesSucceeded++
}

func (m *Metrics) IncrementPushesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PushesFailed++
}

func (m *Metrics) RecordRunDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.RunCount++
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avg := time.Duration(0)
	if m.RunCount > 0 {
		avg = m.TotalRunDuration / time.Duration(m.RunCount)
	}

	return map[string]interface{}{
		"articles_fetched":         m.ArticlesFetched,
		"articles_selected":        m.ArticlesSelected,
		"link_resolution_failures": m.LinkResolutionFailures,
		"filter_parse_fallbacks":   m.FilterParseFallbacks,
		"integrity_fallbacks":      m.IntegrityFallbacks,
		"pushes_succeeded":         m.PushesSucceeded,
		"pushes_failed":            m.PushesFailed,
		"last_run_duration_ms":     m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms":  avg.Milliseconds(),
		"last_run_time":            m.LastRunTime.Format(time.RFC3339),
		"last_error_time":          m.LastErrorTime.Format(time.RFC3339),
		"last_error":               m.LastError,
		"is_healthy":               m.IsHealthy,
	}
}
