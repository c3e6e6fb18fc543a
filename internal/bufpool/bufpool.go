// Package bufpool implements the reusable message buffer pool and the
// pressure-driven memory monitor described in spec.md §4.12.
package bufpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultInitialCap = 4 * 1024
	defaultMaxCap      = 64 * 1024
	defaultPoolSize    = 50
)

// Pool hands out reusable []byte buffers for outbound wire messages.
// Buffers larger than maxCap are discarded on Put instead of pooled.
type Pool struct {
	pool    sync.Pool
	maxCap  int
	inUse   int64
	discard int64
}

func New() *Pool {
	return NewSized(defaultInitialCap, defaultMaxCap)
}

func NewSized(initialCap, maxCap int) *Pool {
	p := &Pool{maxCap: maxCap}
	p.pool.New = func() any {
		b := make([]byte, 0, initialCap)
		return &b
	}
	return p
}

func (p *Pool) Get() *[]byte {
	atomic.AddInt64(&p.inUse, 1)
	b := p.pool.Get().(*[]byte)
	*b = (*b)[:0]
	return b
}

func (p *Pool) Put(b *[]byte) {
	atomic.AddInt64(&p.inUse, -1)
	if cap(*b) > p.maxCap {
		atomic.AddInt64(&p.discard, 1)
		return
	}
	p.pool.Put(b)
}

func (p *Pool) Stats() (inUse, discarded int64) {
	return atomic.LoadInt64(&p.inUse), atomic.LoadInt64(&p.discard)
}

// LargeValue is a reference to a value materialized above the
// large-value threshold (spec.md §4.12) instead of copied into an owned
// buffer; callers deliver it to the socket as a separate scatter write.
type LargeValue struct {
	Data []byte
}

// Trimmer is invoked by the Monitor when memory pressure crosses a
// threshold; cache implementations register themselves here.
type Trimmer interface {
	TrimCaches()
	DropStatementPool()
}

// Monitor samples process memory (via a pluggable sampler so tests don't
// depend on OS-level RSS accounting) and triggers cache trimming.
type Monitor struct {
	mu                    sync.Mutex
	sampler               func() uint64 // bytes
	thresholdBytes        uint64
	highThresholdBytes    uint64
	trimmers              []Trimmer
	stopCh                chan struct{}
}

func NewMonitor(sampler func() uint64, thresholdMB, highThresholdMB int) *Monitor {
	return &Monitor{
		sampler:            sampler,
		thresholdBytes:     uint64(thresholdMB) * 1024 * 1024,
		highThresholdBytes: uint64(highThresholdMB) * 1024 * 1024,
		stopCh:             make(chan struct{}),
	}
}

func (m *Monitor) Register(t Trimmer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmers = append(m.trimmers, t)
}

// Sample checks current usage once and trims caches if thresholds are
// crossed. Exported directly so tests can drive it without a ticker.
func (m *Monitor) Sample() {
	if m.sampler == nil {
		return
	}
	used := m.sampler()
	m.mu.Lock()
	trimmers := append([]Trimmer(nil), m.trimmers...)
	m.mu.Unlock()

	if used >= m.highThresholdBytes {
		for _, t := range trimmers {
			t.TrimCaches()
			t.DropStatementPool()
		}
		return
	}
	if used >= m.thresholdBytes {
		for _, t := range trimmers {
			t.TrimCaches()
		}
	}
}

// RSSSampler reports the Go runtime's MemStats.Sys, the total memory the
// runtime has obtained from the OS; close enough to process RSS for
// threshold purposes without shelling out to /proc.
func RSSSampler() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}

// Start runs Sample on a ticker until ctx is canceled; callers run it in
// its own goroutine.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}
