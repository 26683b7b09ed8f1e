package store

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"

	models "github.com/CodeAndHammer/wordly/internal/models"
)

// MemoryStore keeps rooms in process. A single lock serialises writers, so
// Transact never has to retry.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]*models.Room
	feeds  map[string]map[int]*feed
	nextID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*models.Room),
		feeds: make(map[string]map[int]*feed),
	}
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return room.Clone(), nil
}

func (s *MemoryStore) Set(ctx context.Context, room *models.Room) error {
	_, err := s.Transact(ctx, room.ID, setMutator(room))
	return err
}

func (s *MemoryStore) Update(ctx context.Context, roomID string, patch Patch) error {
	_, err := s.Transact(ctx, roomID, patchMutator(patch))
	return err
}

func (s *MemoryStore) Delete(ctx context.Context, roomID string) error {
	_, err := s.Transact(ctx, roomID, deleteMutator)
	return err
}

func (s *MemoryStore) Transact(ctx context.Context, roomID string, fn Mutator) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.rooms[roomID]
	next, err := fn(current.Clone())
	if errors.Is(err, ErrNoop) {
		return current.Clone(), nil
	}
	if err != nil {
		return nil, err
	}

	if next == nil {
		if exists {
			delete(s.rooms, roomID)
			s.publishLocked(roomID, nil)
		}
		return nil, nil
	}

	next.ID = roomID
	next.Version = 1
	if exists {
		next.Version = current.Version + 1
	}
	stored := next.Clone()
	s.rooms[roomID] = stored
	s.publishLocked(roomID, stored)
	return next, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.MapToSlice(s.rooms, func(_ string, r *models.Room) *models.Room { return r.Clone() }), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, roomID string, fn func(*models.Room)) (func(), error) {
	f := newFeed(fn)

	s.mu.Lock()
	room, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		f.close()
		return nil, ErrNotFound
	}
	id := s.nextID
	s.nextID++
	if s.feeds[roomID] == nil {
		s.feeds[roomID] = make(map[int]*feed)
	}
	s.feeds[roomID][id] = f
	f.push(room)
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		if subs := s.feeds[roomID]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.feeds, roomID)
			}
		}
		s.mu.Unlock()
		f.close()
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-f.done:
		}
	}()
	return unsubscribe, nil
}

func (s *MemoryStore) publishLocked(roomID string, room *models.Room) {
	for _, f := range s.feeds[roomID] {
		f.push(room)
	}
	if room == nil {
		delete(s.feeds, roomID)
	}
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, subs := range s.feeds {
		for _, f := range subs {
			f.close()
		}
	}
	s.feeds = make(map[string]map[int]*feed)
	return nil
}
