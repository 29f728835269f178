package ingest

import "sync"

// progress turns acknowledged byte counts into whole percentages. It only
// ever reports increasing values, holds at 99 until the storage backend has
// accepted the whole object, and goes silent once stopped.
type progress struct {
	mu      sync.Mutex
	total   int64
	last    int
	stopped bool
	fn      func(int)
}

func newProgress(total int64, fn func(int)) *progress {
	return &progress{total: total, last: -1, fn: fn}
}

// transferred is the storage backend's byte-count callback
func (p *progress) transferred(n int64) {
	pct := 0
	if p.total > 0 {
		pct = int(n * 100 / p.total)
	}
	if pct > 99 {
		pct = 99
	}
	p.report(pct)
}

// complete reports 100 after the backend acknowledged the upload
func (p *progress) complete() {
	p.report(100)
	p.stop()
}

func (p *progress) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *progress) report(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || pct <= p.last {
		return
	}
	p.last = pct
	if p.fn != nil {
		p.fn(pct)
	}
}
