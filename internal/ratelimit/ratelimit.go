// Package ratelimit spaces out page loads against the same shop.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer hands out navigation slots per key with at least minDelay, plus
// random jitter up to maxDelay, between consecutive slots. Slots are reserved
// under the lock and waited for outside it, so one slow caller never holds
// up other keys.
type Pacer struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	next     map[string]time.Time
	rnd      *rand.Rand
	now      func() time.Time
}

// NewPacer returns a pacer; a zero maxDelay and minDelay disable pacing.
func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		next:     make(map[string]time.Time),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

func (p *Pacer) Enabled() bool {
	return p != nil && p.maxDelay > 0
}

// Wait blocks until the caller's slot for key arrives or ctx is done.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	if !p.Enabled() {
		return nil
	}

	wait := p.reserve(key)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pacer) reserve(key string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	slot := p.next[key]
	if slot.Before(now) {
		slot = now
	}
	p.next[key] = slot.Add(p.delay())
	return slot.Sub(now)
}

func (p *Pacer) delay() time.Duration {
	if p.maxDelay == p.minDelay {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.rnd.Int63n(int64(p.maxDelay-p.minDelay)))
}
