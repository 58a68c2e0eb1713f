package batch

import "sync"

// stagingCap is the ceiling while pairs are still being staged or processed.
// The band above it belongs to result collection.
const stagingCap = 80.0

// Progress aggregates per-pair shares into one monotone value in [0, 100].
// Each pair is written by one worker; reads and writes are safe concurrently.
type Progress struct {
	mu       sync.Mutex
	shares   []float64
	resolved []bool
	value    float64

	onRise    func(float64)
	notified  float64
	notifying bool
}

// NewProgress tracks pairs pairs. onRise, if set, is called outside the lock with
// strictly increasing values; rises that arrive while a call is in progress are
// coalesced into the latest one.
func NewProgress(pairs int, onRise func(float64)) *Progress {
	return &Progress{
		shares:   make([]float64, pairs),
		resolved: make([]bool, pairs),
		onRise:   onRise,
	}
}

// SetEstimate records an in-flight job's estimate (0-100) for ordinal.
func (p *Progress) SetEstimate(ordinal int, estimate float64) {
	share := min(max(estimate/100, 0), 1)

	p.mu.Lock()
	if p.resolved[ordinal] || share <= p.shares[ordinal] {
		p.mu.Unlock()
		return
	}
	p.shares[ordinal] = share
	notify := p.recompute()
	p.mu.Unlock()

	if notify {
		p.notify()
	}
}

// Resolve marks ordinal as finished, whatever its outcome.
func (p *Progress) Resolve(ordinal int) {
	p.mu.Lock()
	p.resolved[ordinal] = true
	p.shares[ordinal] = 1
	notify := p.recompute()
	p.mu.Unlock()

	if notify {
		p.notify()
	}
}

// Complete moves the value to 100 if every pair is resolved. It reports whether it did.
func (p *Progress) Complete() bool {
	p.mu.Lock()
	for _, r := range p.resolved {
		if !r {
			p.mu.Unlock()
			return false
		}
	}
	notify := p.raise(100)
	p.mu.Unlock()

	if notify {
		p.notify()
	}
	return true
}

// Value returns the current aggregate.
func (p *Progress) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// recompute must be called with mu held.
func (p *Progress) recompute() bool {
	if len(p.shares) == 0 {
		return false
	}
	var sum float64
	for _, s := range p.shares {
		sum += s
	}
	return p.raise(stagingCap * sum / float64(len(p.shares)))
}

// raise must be called with mu held. It reports whether the caller became the
// notifier and must call notify after unlocking.
func (p *Progress) raise(v float64) bool {
	if v <= p.value {
		return false
	}
	p.value = v
	if p.onRise == nil || p.notifying {
		return false
	}
	p.notifying = true
	return true
}

// notify delivers the latest value to onRise until no newer value is pending.
// Only one goroutine notifies at a time, so listeners see values in order.
func (p *Progress) notify() {
	p.mu.Lock()
	for p.value > p.notified {
		v := p.value
		p.notified = v
		p.mu.Unlock()
		p.onRise(v)
		p.mu.Lock()
	}
	p.notifying = false
	p.mu.Unlock()
}
