package session

import (
	"context"
	"fmt"

	game "github.com/CodeAndHammer/wordly/internal/game"
	models "github.com/CodeAndHammer/wordly/internal/models"
	room "github.com/CodeAndHammer/wordly/internal/room"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

// Driver plays a player's board inside a multiplayer room and pushes every
// accepted guess to the coordinator.
type Driver struct {
	rooms    *room.Coordinator
	sessions *Manager
}

func NewDriver(rooms *room.Coordinator, sessions *Manager) *Driver {
	return &Driver{rooms: rooms, sessions: sessions}
}

// activeSession resolves the caller's board for the room's current word and
// first writes back any progress the board has that the room is missing.
func (d *Driver) activeSession(ctx context.Context, roomID, playerID string) (*game.Session, *models.Room, error) {
	r, err := d.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	p, ok := r.Players[playerID]
	if !ok {
		return nil, nil, room.ErrPlayerNotFound
	}
	if r.Status != models.RoomPlaying {
		return nil, nil, room.ErrInvalidTransition
	}
	if p.Status == models.PlayerCompleted {
		return nil, nil, game.ErrGameOver
	}
	s, err := d.sessions.RoomSession(roomID, playerID, r.CurrentWord)
	if err != nil {
		return nil, nil, err
	}
	r, err = d.reconcile(ctx, r, p, s)
	if err != nil {
		return nil, nil, err
	}
	return s, r, nil
}

// reconcile replays rows the room has not recorded and completes the player
// when the board already finished. It covers a store write that failed after
// the board accepted a guess.
func (d *Driver) reconcile(ctx context.Context, r *models.Room, p *models.Player, s *game.Session) (*models.Room, error) {
	snap := s.Snapshot()
	for row := len(p.Guesses); row < len(snap.Guesses); row++ {
		classes, err := game.Evaluate(snap.Guesses[row], s.Target())
		if err != nil {
			return nil, err
		}
		next, err := d.rooms.UpdatePlayerProgress(ctx, r.ID, p.ID, row+1, game.ScoreDelta(classes), snap.Guesses[row])
		if err != nil {
			return nil, fmt.Errorf("record progress: %w", err)
		}
		r = next
		util.LogWarn(util.WithRequestID(ctx, "Replayed row %d for player %s in room %s"), row+1, p.ID, r.ID)
	}
	if !snap.Outcome.Terminal() {
		return r, nil
	}
	return d.complete(ctx, r.ID, p.ID, s)
}

func (d *Driver) complete(ctx context.Context, roomID, playerID string, s *game.Session) (*models.Room, error) {
	outcome := s.Outcome()
	r, ranked, err := d.rooms.CompleteGame(ctx, roomID, playerID, s.FinalScore(), outcome == game.Won)
	if err != nil {
		return nil, fmt.Errorf("complete round: %w", err)
	}
	util.LogInfo(util.WithRequestID(ctx, "Player %s finished room %s (%s), ranked=%v"), playerID, roomID, outcome, ranked)
	return r, nil
}

func (d *Driver) AddLetter(ctx context.Context, roomID, playerID string, letter rune) (game.Snapshot, error) {
	s, _, err := d.activeSession(ctx, roomID, playerID)
	if err != nil {
		return game.Snapshot{}, err
	}
	s.AddLetter(letter)
	return s.Snapshot(), nil
}

func (d *Driver) DeleteLetter(ctx context.Context, roomID, playerID string) (game.Snapshot, error) {
	s, _, err := d.activeSession(ctx, roomID, playerID)
	if err != nil {
		return game.Snapshot{}, err
	}
	s.DeleteLetter()
	return s.Snapshot(), nil
}

// Submit scores the current row, records progress and, when the board is
// finished, completes the player's round. If the board had already finished
// but the room had not heard about it, the room is brought up to date and the
// result is nil.
func (d *Driver) Submit(ctx context.Context, roomID, playerID string) (*game.SubmitResult, *models.Room, error) {
	s, r, err := d.activeSession(ctx, roomID, playerID)
	if err != nil {
		return nil, nil, err
	}
	if s.Outcome().Terminal() {
		return nil, r, nil
	}
	res, err := s.Submit(ctx)
	if err != nil {
		return nil, nil, err
	}

	r, err = d.rooms.UpdatePlayerProgress(ctx, roomID, playerID, res.Row+1, res.ScoreDelta, res.Guess)
	if err != nil {
		return res, nil, fmt.Errorf("record progress: %w", err)
	}
	if !res.Outcome.Terminal() {
		return res, r, nil
	}
	r, err = d.complete(ctx, roomID, playerID, s)
	if err != nil {
		return res, nil, err
	}
	return res, r, nil
}

// Board returns the caller's board, which stays readable after the round.
func (d *Driver) Board(ctx context.Context, roomID, playerID string) (game.Snapshot, error) {
	if s, ok := d.sessions.ExistingRoomSession(roomID, playerID); ok {
		return s.Snapshot(), nil
	}
	s, _, err := d.activeSession(ctx, roomID, playerID)
	if err != nil {
		return game.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Leave removes the player from the room and discards their board.
func (d *Driver) Leave(ctx context.Context, roomID, playerID string) (*models.Room, error) {
	r, err := d.rooms.LeaveRoom(ctx, roomID, playerID)
	if err != nil {
		return nil, err
	}
	d.sessions.DropRoomSession(roomID, playerID)
	return r, nil
}
