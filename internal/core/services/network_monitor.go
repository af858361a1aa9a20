package services

import (
	"context"
	"sync"
	"time"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"

	"go.uber.org/zap"
)

// NetworkMonitor polls interface counters and republishes them with a
// throughput figure. Each poll publishes a fresh map.
type NetworkMonitor struct {
	mu       sync.RWMutex
	current  domain.InterfaceMetrics
	lastPoll time.Time
	listener func(domain.InterfaceMetrics)

	poller   ports.InterfacePoller
	metrics  ports.MetricsCollector
	interval time.Duration
	now      func() time.Time
	logger   *zap.SugaredLogger
}

func NewNetworkMonitor(poller ports.InterfacePoller, metrics ports.MetricsCollector, interval time.Duration, logger *zap.SugaredLogger) *NetworkMonitor {
	return &NetworkMonitor{
		current:  domain.InterfaceMetrics{},
		poller:   poller,
		metrics:  metrics,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// SetUpdateListener registers fn to be called with every published map.
func (m *NetworkMonitor) SetUpdateListener(fn func(domain.InterfaceMetrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = fn
}

// Snapshot returns the latest published metrics. Callers must not modify it.
func (m *NetworkMonitor) Snapshot() domain.InterfaceMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Poll reads the counters once and publishes the result. On a poller error
// the previous metrics stay published.
func (m *NetworkMonitor) Poll(ctx context.Context) error {
	counters, err := m.poller.Poll(ctx)
	if err != nil {
		m.logger.Warnw("interface poll failed", "error", err)
		return err
	}
	now := m.now()

	m.mu.Lock()
	elapsed := now.Sub(m.lastPoll).Seconds()
	next := make(domain.InterfaceMetrics, len(counters))
	for name, c := range counters {
		stats := domain.InterfaceStats{Address: c.Address, TxBytes: c.TxBytes}
		if prev, ok := m.current[name]; ok && !m.lastPoll.IsZero() && elapsed > 0 && c.TxBytes >= prev.TxBytes {
			stats.Throughput = uint64(float64(c.TxBytes-prev.TxBytes) / elapsed)
		}
		next[name] = stats
	}
	m.current = next
	m.lastPoll = now
	listener := m.listener
	m.mu.Unlock()

	for name, stats := range next {
		m.metrics.RecordInterfaceThroughput(name, stats.Throughput)
	}
	if listener != nil {
		listener(next)
	}
	return nil
}

// Run polls every interval until ctx is done.
func (m *NetworkMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = m.Poll(ctx)
		}
	}
}
