// Package immediateticker is a time.Ticker that also fires right away, so
// periodic samplers have a value before the first interval passes.
package immediateticker

import "time"

type ImmediateTicker struct {
	C <-chan time.Time

	t    *time.Ticker
	done chan struct{}
}

func New(interval time.Duration) *ImmediateTicker {
	c := make(chan time.Time, 1)
	c <- time.Now()

	it := &ImmediateTicker{
		C:    c,
		t:    time.NewTicker(interval),
		done: make(chan struct{}),
	}

	go func() {
		for {
			select {
			case tick := <-it.t.C:
				select {
				case c <- tick:
				default:
					// reader is behind, drop the tick like time.Ticker does
				}
			case <-it.done:
				return
			}
		}
	}()

	return it
}

// Stop turns off the ticker. It must be called at most once.
func (it *ImmediateTicker) Stop() {
	it.t.Stop()
	close(it.done)
}

func (it *ImmediateTicker) Reset(interval time.Duration) {
	it.t.Reset(interval)
}
