package store

import (
	"sync"

	models "github.com/CodeAndHammer/wordly/internal/models"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

// feed delivers room snapshots to one subscriber on its own goroutine.
// Writers never block: if the subscriber is slow, intermediate snapshots are
// dropped and only the newest is handed over.
type feed struct {
	fn   func(*models.Room)
	wake chan struct{}
	done chan struct{}
	stop sync.Once

	mu          sync.Mutex
	latest      *models.Room
	hasLatest   bool
	lastVersion int64
	ended       bool
}

func newFeed(fn func(*models.Room)) *feed {
	f := &feed{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go f.run()
	return f
}

// push queues room, ignoring snapshots older than the last one queued.
func (f *feed) push(room *models.Room) {
	f.mu.Lock()
	if f.ended || (room != nil && room.Version <= f.lastVersion) {
		f.mu.Unlock()
		return
	}
	if room != nil {
		f.lastVersion = room.Version
		f.latest = room.Clone()
	} else {
		f.latest = nil
		f.ended = true
	}
	f.hasLatest = true
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *feed) close() {
	f.stop.Do(func() { close(f.done) })
}

func (f *feed) run() {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}

		f.mu.Lock()
		if !f.hasLatest {
			f.mu.Unlock()
			continue
		}
		room, ended := f.latest, f.ended
		f.latest, f.hasLatest = nil, false
		f.mu.Unlock()

		f.deliver(room)
		if ended {
			f.close()
			return
		}
	}
}

func (f *feed) deliver(room *models.Room) {
	defer func() {
		if r := recover(); r != nil {
			util.LogError("Room subscriber panicked: %v", r)
		}
	}()
	f.fn(room)
}
