package store

import (
	"context"
	"errors"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	models "github.com/CodeAndHammer/wordly/internal/models"
)

var (
	ErrNotFound = errors.New(constants.ErrorCodeRoomNotFound)
	// ErrNoop lets a Mutator leave the document untouched; Transact then
	// returns the current room and a nil error.
	ErrNoop     = errors.New("store: no change")
	ErrConflict = errors.New("store: too many concurrent writers")
)

// Mutator receives a private copy of the current room, or nil when the room
// does not exist, and returns the room to write. Returning nil deletes it.
type Mutator func(current *models.Room) (*models.Room, error)

// Patch edits an existing room in place.
type Patch func(room *models.Room) error

// RoomStore is the shared state behind every room. All writes bump
// Room.Version and are pushed to subscribers as full snapshots.
type RoomStore interface {
	Get(ctx context.Context, roomID string) (*models.Room, error)
	Set(ctx context.Context, room *models.Room) error
	// Update applies patch to an existing room as one write.
	Update(ctx context.Context, roomID string, patch Patch) error
	// Transact runs fn against the latest room and commits its result only
	// if nobody else wrote in between, retrying otherwise.
	Transact(ctx context.Context, roomID string, fn Mutator) (*models.Room, error)
	Delete(ctx context.Context, roomID string) error
	List(ctx context.Context) ([]*models.Room, error)
	// Subscribe calls fn with the current room and then after every write;
	// fn receives nil once the room is deleted.
	Subscribe(ctx context.Context, roomID string, fn func(*models.Room)) (func(), error)
	Close() error
}

func patchMutator(patch Patch) Mutator {
	return func(current *models.Room) (*models.Room, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		if err := patch(current); err != nil {
			return nil, err
		}
		return current, nil
	}
}

func setMutator(room *models.Room) Mutator {
	return func(*models.Room) (*models.Room, error) {
		return room.Clone(), nil
	}
}

func deleteMutator(current *models.Room) (*models.Room, error) {
	if current == nil {
		return nil, ErrNotFound
	}
	return nil, nil
}
