package app

import (
	"sync"

	"raven-iq-service/internal/domain"
)

// Feed fans newly created results out to dashboard subscribers. Slow
// subscribers get their oldest pending update dropped rather than blocking
// the submission path.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan domain.Result]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan domain.Result]struct{})}
}

// Subscribe returns a channel of result snapshots. The caller must invoke
// the returned cancel function to avoid leaks.
func (f *Feed) Subscribe() (<-chan domain.Result, func()) {
	ch := make(chan domain.Result, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers one result to every subscriber without blocking.
func (f *Feed) Publish(result domain.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- result:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- result
		}
	}
}
