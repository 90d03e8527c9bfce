package media

import "sync"

const subscriberBuffer = 256

// Tee fans frames written by one producer out to every subscriber. A subscriber that
// falls behind loses frames; the producer never blocks.
type Tee struct {
	id string

	mu     sync.Mutex
	subs   map[int]chan Frame
	next   int
	closed bool
	done   chan struct{}
}

func NewTee(id string) *Tee {
	return &Tee{
		id:   id,
		subs: make(map[int]chan Frame),
		done: make(chan struct{}),
	}
}

func (t *Tee) ID() string { return t.id }

func (t *Tee) Done() <-chan struct{} { return t.done }

func (t *Tee) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, subscriberBuffer)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := t.next
	t.next++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			if c, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(c)
			}
			t.mu.Unlock()
		})
	}
}

func (t *Tee) Write(f Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

// Close ends the track. Safe to call more than once.
func (t *Tee) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
	close(t.done)
}

// LocalTrack is a captured track owned by whoever acquired it. Stop releases the
// capture device and ends the track.
type LocalTrack struct {
	*Tee

	stopOnce sync.Once
	stop     func()
}

func NewLocalTrack(id string, stop func()) *LocalTrack {
	return &LocalTrack{Tee: NewTee(id), stop: stop}
}

func (t *LocalTrack) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() {
		if t.stop != nil {
			t.stop()
		}
		t.Tee.Close()
	})
}
