package jobs

import "time"

// SetAfter replaces the sleep source so tests can count waits.
func (p *Poller) SetAfter(after func(time.Duration) <-chan time.Time) {
	p.after = after
}
