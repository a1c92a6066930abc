package marketplace

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// pacer enforces a minimum idle interval between the end of one call and
// the start of the next. Callers mark the end of a call with done.
type pacer struct {
	last     time.Time
	interval time.Duration
	mu       sync.Mutex
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval}
}

// wait blocks until interval has passed since the last done, or the context
// is canceled. It does not wait before the first call.
func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() && p.interval > 0 {
		if remaining := p.interval - time.Since(p.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return fmt.Errorf("pacer canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}
	return nil
}

// done records that the current call has finished.
func (p *pacer) done() {
	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
}
