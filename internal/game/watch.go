package game

import (
	"sync"

	util "github.com/CodeAndHammer/wordly/internal/util"
)

// watcher is one subscriber's mailbox. It holds at most the newest snapshot
// and never accepts one older than what it already took.
type watcher struct {
	fn   func(Snapshot)
	wake chan struct{}
	done chan struct{}
	stop sync.Once

	mu      sync.Mutex
	latest  Snapshot
	queued  bool
	version uint64
	started bool
}

func newWatcher(fn func(Snapshot)) *watcher {
	w := &watcher{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *watcher) push(snap Snapshot) {
	w.mu.Lock()
	if w.started && snap.Version <= w.version {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.version = snap.Version
	w.latest, w.queued = snap, true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) close() {
	w.stop.Do(func() { close(w.done) })
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		w.mu.Lock()
		if !w.queued {
			w.mu.Unlock()
			continue
		}
		snap := w.latest
		w.queued = false
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.deliver(snap)
	}
}

func (w *watcher) deliver(snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			util.LogError("Board subscriber panicked: %v", r)
		}
	}()
	w.fn(snap)
}
