// Package realtime shares database listeners between HTTP streams.
package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrListenerStopped ends subscriptions whose database listener returned without an error.
var ErrListenerStopped = errors.New("listener stopped")

// Subscription receives the values of a feed. Updates holds at most one pending value:
// a slow consumer skips intermediate values and always sees the most recent one.
type Subscription[T any] struct {
	updates chan T
	done    chan struct{}
	tag     string
	feed    *feed[T]
	err     error
}

// Updates delivers the latest value of the feed.
func (s *Subscription[T]) Updates() <-chan T { return s.updates }

// Done is closed when the subscription ends, either through Close or because the feed stopped.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Err reports why the feed ended the subscription. It is nil after Close.
func (s *Subscription[T]) Err() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	return s.err
}

// Close detaches the subscription. The listener behind it stops with its last subscriber.
func (s *Subscription[T]) Close() { s.feed.remove(s, nil) }

// feed fans the values of one listener out to its subscriptions.
type feed[T any] struct {
	mu     sync.Mutex
	latest T
	has    bool
	closed bool
	subs   map[*Subscription[T]]struct{}
	cancel context.CancelFunc
	// onEmpty runs without mu held after the last subscriber left.
	onEmpty func()
}

func newFeed[T any](cancel context.CancelFunc) *feed[T] {
	return &feed[T]{subs: make(map[*Subscription[T]]struct{}), cancel: cancel}
}

// offer replaces any pending value in ch with v.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

func (f *feed[T]) add(tag string) *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &Subscription[T]{updates: make(chan T, 1), done: make(chan struct{}), tag: tag, feed: f}
	if f.closed {
		s.err = ErrListenerStopped
		close(s.done)
		return s
	}
	f.subs[s] = struct{}{}
	if f.has {
		offer(s.updates, f.latest)
	}
	return s
}

func (f *feed[T]) publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest, f.has = v, true
	for s := range f.subs {
		offer(s.updates, v)
	}
}

func (f *feed[T]) current() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.has
}

func (f *feed[T]) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *feed[T]) remove(s *Subscription[T], err error) {
	f.mu.Lock()
	if _, ok := f.subs[s]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.subs, s)
	s.err = err
	close(s.done)
	empty := len(f.subs) == 0
	onEmpty := f.onEmpty
	f.mu.Unlock()

	if empty && onEmpty != nil {
		onEmpty()
	}
}

// removeTagged ends every subscription carrying tag and reports how many were ended.
func (f *feed[T]) removeTagged(tag string) int {
	f.mu.Lock()
	var tagged []*Subscription[T]
	for s := range f.subs {
		if s.tag == tag {
			tagged = append(tagged, s)
		}
	}
	f.mu.Unlock()
	for _, s := range tagged {
		f.remove(s, nil)
	}
	return len(tagged)
}

// shutdown stops the listener and ends every subscription with err.
func (f *feed[T]) shutdown(err error) {
	f.mu.Lock()
	f.closed = true
	for s := range f.subs {
		s.err = err
		close(s.done)
		delete(f.subs, s)
	}
	f.mu.Unlock()
	f.cancel()
}
