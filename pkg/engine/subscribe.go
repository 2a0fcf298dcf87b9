package engine

import "sync"

type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Snapshot
}

// publish delivers s to every subscriber without blocking. A subscriber that
// has not consumed the previous snapshot gets it replaced by s.
func (ss *subscribers) publish(s Snapshot) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	for _, ch := range ss.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// Drop the stale snapshot and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe returns a channel receiving a snapshot after every state change
// and a function that ends the subscription. Only the latest snapshot is
// kept for slow readers.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ss := &e.subs
	ch := make(chan Snapshot, 1)

	ss.mu.Lock()
	if ss.subs == nil {
		ss.subs = make(map[int]chan Snapshot)
	}
	id := ss.next
	ss.next++
	ss.subs[id] = ch
	ss.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ss.mu.Lock()
			delete(ss.subs, id)
			ss.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
