package room

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	game "github.com/CodeAndHammer/wordly/internal/game"
	models "github.com/CodeAndHammer/wordly/internal/models"
	store "github.com/CodeAndHammer/wordly/internal/store"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

const maxCodeAttempts = 20

// Identity is the caller as known to the session layer.
type Identity struct {
	ID   string
	Name string
}

type CreateOptions struct {
	Name       string
	Code       string
	Difficulty models.Difficulty
	Word       string
}

// Coordinator owns every room state transition. Each operation is a single
// store transaction, so concurrent callers never act on stale reads.
type Coordinator struct {
	store store.RoomStore
	now   func() time.Time
}

func NewCoordinator(s store.RoomStore) *Coordinator {
	return &Coordinator{store: s, now: func() time.Time { return time.Now().UTC() }}
}

func (c *Coordinator) CreateRoom(ctx context.Context, host Identity, opts CreateOptions) (*models.Room, error) {
	if host.ID == "" {
		return nil, ErrUnauthorized
	}
	var word string
	if opts.Word != "" {
		w, err := game.NormalizeWord(opts.Word)
		if err != nil {
			return nil, err
		}
		word = w
	}

	build := func(code string) store.Mutator {
		return func(current *models.Room) (*models.Room, error) {
			if current != nil {
				return nil, ErrRoomCodeConflict
			}
			now := c.now()
			return &models.Room{
				ID:          code,
				Name:        cleanName(opts.Name, "Room", constants.MaxRoomNameLen),
				CreatedBy:   host.ID,
				Difficulty:  models.ParseDifficulty(string(opts.Difficulty)),
				Status:      models.RoomWaiting,
				CurrentWord: word,
				Players: map[string]*models.Player{
					host.ID: newPlayer(host, models.PlayerReady, now),
				},
				CreatedAt: now,
			}, nil
		}
	}

	if opts.Code != "" {
		if !validCode(opts.Code) {
			return nil, ErrInvalidRoomCode
		}
		room, err := c.store.Transact(ctx, opts.Code, build(opts.Code))
		if err != nil {
			return nil, err
		}
		util.LogInfo(util.WithRequestID(ctx, "Room %s created by %s with chosen code"), room.ID, host.ID)
		return room, nil
	}

	for range maxCodeAttempts {
		code := fmt.Sprintf("%0*d", constants.RoomCodeLength, randomIndex(1_000_000))
		room, err := c.store.Transact(ctx, code, build(code))
		if errors.Is(err, ErrRoomCodeConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		util.LogInfo(util.WithRequestID(ctx, "Room %s created by %s"), room.ID, host.ID)
		return room, nil
	}
	return nil, fmt.Errorf("generate room code: %w", ErrRoomCodeConflict)
}

// JoinRoom adds the caller to a waiting room. Joining a room you are
// already in succeeds without changes, whatever its status.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID string, who Identity) (*models.Room, error) {
	if who.ID == "" {
		return nil, ErrUnauthorized
	}
	room, err := c.store.Transact(ctx, roomID, func(r *models.Room) (*models.Room, error) {
		if r == nil {
			return nil, ErrRoomNotFound
		}
		if _, ok := r.Players[who.ID]; ok {
			return nil, store.ErrNoop
		}
		if r.Status != models.RoomWaiting {
			return nil, ErrRoomNotJoinable
		}
		r.Players[who.ID] = newPlayer(who, models.PlayerWaiting, c.now())
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	util.LogInfo(util.WithRequestID(ctx, "Player %s in room %s (%d players)"), who.ID, roomID, len(room.Players))
	return room, nil
}

func (c *Coordinator) ToggleReady(ctx context.Context, roomID, playerID string) (*models.Room, error) {
	return c.store.Transact(ctx, roomID, func(r *models.Room) (*models.Room, error) {
		if r == nil {
			return nil, ErrRoomNotFound
		}
		if r.Status != models.RoomWaiting {
			return nil, ErrInvalidTransition
		}
		p, ok := r.Players[playerID]
		if !ok {
			return nil, ErrPlayerNotFound
		}
		switch p.Status {
		case models.PlayerWaiting:
			p.Status = models.PlayerReady
		case models.PlayerReady:
			p.Status = models.PlayerWaiting
		default:
			return nil, ErrInvalidTransition
		}
		return r, nil
	})
}

// StartGame moves a waiting room into play with word as the shared target.
// Every player is reset in the same write.
func (c *Coordinator) StartGame(ctx context.Context, roomID, callerID, word string) (*models.Room, error) {
	target, err := game.NormalizeWord(word)
	if err != nil {
		return nil, err
	}
	room, err := c.store.Transact(ctx, roomID, func(r *models.Room) (*models.Room, error) {
		if r == nil {
			return nil, ErrRoomNotFound
		}
		if r.CreatedBy != callerID {
			return nil, ErrUnauthorized
		}
		if r.Status != models.RoomWaiting {
			return nil, ErrInvalidTransition
		}
		if !r.AllPlayers(models.PlayerReady) {
			return nil, ErrPlayersNotReady
		}
		now := c.now()
		r.Status = models.RoomPlaying
		r.CurrentWord = target
		r.StartedAt = &now
		for _, p := range r.Players {
			p.Status = models.PlayerPlaying
			p.Score = 0
			p.CurrentRow = 0
			p.Guesses = []string{}
			p.IsWinner = false
			p.Position = 0
			p.CompletedAt = nil
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	util.LogInfo(util.WithRequestID(ctx, "Room %s started with %d players"), roomID, len(room.Players))
	return room, nil
}

// UpdatePlayerProgress records one accepted guess for a playing player.
// Sending the same row twice leaves the room unchanged.
func (c *Coordinator) UpdatePlayerProgress(ctx context.Context, roomID, playerID string, currentRow, scoreDelta int, guess string) (*models.Room, error) {
	if currentRow > constants.MaxGuesses || scoreDelta < 0 {
		return nil, ErrInvalidProgress
	}
	return c.store.Transact(ctx, roomID, func(r *models.Room) (*models.Room, error) {
		if r == nil {
			return nil, ErrRoomNotFound
		}
		if r.Status != models.RoomPlaying {
			return nil, ErrInvalidTransition
		}
		p, ok := r.Players[playerID]
		if !ok {
			return nil, ErrPlayerNotFound
		}
		if p.Status != models.PlayerPlaying {
			return nil, ErrInvalidTransition
		}
		if currentRow < p.CurrentRow {
			return nil, ErrInvalidProgress
		}
		// A row that is already recorded is being replayed.
		if guess != "" && len(p.Guesses) >= currentRow {
			return nil, store.ErrNoop
		}
		p.CurrentRow = currentRow
		p.Score += scoreDelta
		if guess != "" {
			p.Guesses = append(p.Guesses, strings.ToUpper(guess))
		}
		return r, nil
	})
}

// CompleteGame finishes a player's round. When that makes every player
// complete, positions are assigned and the room completes within the same
// transaction; ranked reports whether this call did it.
func (c *Coordinator) CompleteGame(ctx context.Context, roomID, playerID string, finalScore int, isWinner bool) (room *models.Room, ranked bool, err error) {
	room, err = c.store.Transact(ctx, roomID, func(r *models.Room) (*models.Room, error) {
		ranked = false
		if r == nil {
			return nil, ErrRoomNotFound
		}
		p, ok := r.Players[playerID]
		if !ok {
			return nil, ErrPlayerNotFound
		}
		if p.Status == models.PlayerCompleted {
			return nil, store.ErrNoop
		}
		if r.Status != models.RoomPlaying || p.Status != models.PlayerPlaying {
			return nil, ErrInvalidTransition
		}
		now := c.now()
		p.Status = models.PlayerCompleted
		p.Score = finalScore
		p.IsWinner = isWinner
		p.CompletedAt = &now

		if r.AllPlayers(models.PlayerCompleted) {
			assignPositions(r, now)
			ranked = true
		}
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	if ranked {
		util.LogInfo(util.WithRequestID(ctx, "Room %s completed, %d players ranked"), roomID, len(room.Players))
	}
	return room, ranked, nil
}

// LeaveRoom removes a player. The host leaving deletes the room, in which
// case the returned room is nil.
func (c *Coordinator) LeaveRoom(ctx context.Context, roomID, playerID string) (*models.Room, error) {
	room, err := c.store.Transact(ctx, roomID, func(r *models.Room) (*models.Room, error) {
		if r == nil {
			return nil, ErrRoomNotFound
		}
		if _, ok := r.Players[playerID]; !ok {
			return nil, ErrPlayerNotFound
		}
		if r.CreatedBy == playerID {
			return nil, nil
		}
		delete(r.Players, playerID)
		if r.Status == models.RoomPlaying && r.AllPlayers(models.PlayerCompleted) {
			assignPositions(r, c.now())
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if room == nil {
		util.LogInfo(util.WithRequestID(ctx, "Host %s left, room %s closed"), playerID, roomID)
	} else {
		util.LogInfo(util.WithRequestID(ctx, "Player %s left room %s"), playerID, roomID)
	}
	return room, nil
}

func (c *Coordinator) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return c.store.Get(ctx, roomID)
}

// AvailableRooms lists joinable rooms, newest first.
func (c *Coordinator) AvailableRooms(ctx context.Context) ([]*models.Room, error) {
	rooms, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	waiting := lo.Filter(rooms, func(r *models.Room, _ int) bool { return r.Status == models.RoomWaiting })
	slices.SortFunc(waiting, func(a, b *models.Room) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return waiting, nil
}

func (c *Coordinator) Subscribe(ctx context.Context, roomID string, fn func(*models.Room)) (func(), error) {
	return c.store.Subscribe(ctx, roomID, fn)
}

// SweepStale deletes rooms created more than maxAge ago.
func (c *Coordinator) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	rooms, err := c.store.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := c.now().Add(-maxAge)
	removed := 0
	for _, r := range rooms {
		if !r.CreatedAt.Before(cutoff) {
			continue
		}
		if err := c.store.Delete(ctx, r.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		util.LogInfo("Cleaned up %d stale rooms", removed)
	}
	return removed, nil
}

// Rank orders players by score (high first), then by who finished first.
func Rank(players []*models.Player) []*models.Player {
	out := slices.Clone(players)
	slices.SortStableFunc(out, func(a, b *models.Player) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			compareTimes(a.CompletedAt, b.CompletedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

func assignPositions(r *models.Room, now time.Time) {
	for i, p := range Rank(lo.Values(r.Players)) {
		p.Position = i + 1
	}
	r.Status = models.RoomCompleted
	r.CompletedAt = &now
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func newPlayer(who Identity, status models.PlayerStatus, now time.Time) *models.Player {
	return &models.Player{
		ID:       who.ID,
		Name:     cleanName(who.Name, "Player", constants.MaxPlayerNameLen),
		Avatar:   randomAvatar(),
		Status:   status,
		Guesses:  []string{},
		JoinedAt: now,
	}
}

func cleanName(name, fallback string, limit int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	if r := []rune(name); len(r) > limit {
		name = string(r[:limit])
	}
	return name
}

func validCode(code string) bool {
	return len(code) == constants.RoomCodeLength && strings.Trim(code, "0123456789") == ""
}
