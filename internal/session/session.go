package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	game "github.com/CodeAndHammer/wordly/internal/game"
	models "github.com/CodeAndHammer/wordly/internal/models"
	util "github.com/CodeAndHammer/wordly/internal/util"
	words "github.com/CodeAndHammer/wordly/internal/words"
)

var ErrNoActiveGame = errors.New(constants.ErrorCodeNoActiveGame)

// GetOrCreatePlayerID returns the caller's player id, issuing a new cookie
// when the request has none.
func GetOrCreatePlayerID(c *gin.Context, maxAge time.Duration, secure bool) string {
	playerID, err := c.Cookie(constants.PlayerCookieName)
	if err != nil || uuid.Validate(playerID) != nil {
		playerID = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(constants.PlayerCookieName, playerID, int(maxAge.Seconds()), "/", "", secure, true)
		util.LogInfo("Created new player: %s", playerID)
	}
	return playerID
}

type roomKey struct {
	roomID   string
	playerID string
}

// Manager keeps every live board in memory: one solo round per player and
// one board per player per room.
type Manager struct {
	mu    sync.RWMutex
	solo  map[string]*game.Session
	rooms map[roomKey]*game.Session
	stats map[string]*game.Stats

	provider  *words.Provider
	validator game.WordValidator
	ttl       time.Duration
}

func NewManager(provider *words.Provider, validator game.WordValidator, ttl time.Duration) *Manager {
	return &Manager{
		solo:      make(map[string]*game.Session),
		rooms:     make(map[roomKey]*game.Session),
		stats:     make(map[string]*game.Stats),
		provider:  provider,
		validator: validator,
		ttl:       ttl,
	}
}

// NewSolo replaces the player's solo round with a fresh one.
func (m *Manager) NewSolo(ctx context.Context, playerID string, difficulty models.Difficulty) (*game.Session, error) {
	word, err := m.provider.Word(ctx, difficulty)
	if err != nil {
		return nil, err
	}
	s, err := game.NewSession(word, m.validator)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.solo[playerID] = s
	m.mu.Unlock()
	util.LogInfo(util.WithRequestID(ctx, "New solo game for player %s (%s)"), playerID, models.ParseDifficulty(string(difficulty)))
	return s, nil
}

func (m *Manager) Solo(playerID string) (*game.Session, error) {
	m.mu.RLock()
	s, ok := m.solo[playerID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoActiveGame
	}
	return s, nil
}

// SubmitSolo submits the current row and records the result in the
// player's statistics when the round ends.
func (m *Manager) SubmitSolo(ctx context.Context, playerID string) (*game.SubmitResult, error) {
	s, err := m.Solo(playerID)
	if err != nil {
		return nil, err
	}
	res, err := s.Submit(ctx)
	if err != nil {
		return nil, err
	}
	if res.Outcome.Terminal() {
		m.mu.Lock()
		st := m.statsLocked(playerID)
		st.Record(res.Outcome == game.Won)
		m.mu.Unlock()
		util.LogInfo(util.WithRequestID(ctx, "Player %s %s in %d guesses"), playerID, res.Outcome, res.Row+1)
	}
	return res, nil
}

func (m *Manager) Stats(playerID string) game.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.statsLocked(playerID)
}

func (m *Manager) statsLocked(playerID string) *game.Stats {
	st, ok := m.stats[playerID]
	if !ok {
		st = &game.Stats{}
		m.stats[playerID] = st
	}
	return st
}

// RoomSession returns the player's board for the room's current word,
// starting a new one when the word changed.
func (m *Manager) RoomSession(roomID, playerID, word string) (*game.Session, error) {
	key := roomKey{roomID: roomID, playerID: playerID}
	target, err := game.NormalizeWord(word)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rooms[key]; ok && s.Target() == target {
		return s, nil
	}
	s, err := game.NewSession(target, m.validator)
	if err != nil {
		return nil, err
	}
	m.rooms[key] = s
	return s, nil
}

func (m *Manager) ExistingRoomSession(roomID, playerID string) (*game.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rooms[roomKey{roomID: roomID, playerID: playerID}]
	return s, ok
}

func (m *Manager) DropRoomSession(roomID, playerID string) {
	m.mu.Lock()
	delete(m.rooms, roomKey{roomID: roomID, playerID: playerID})
	m.mu.Unlock()
}

// Counts reports live solo and room boards.
func (m *Manager) Counts() (solo, room int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.solo), len(m.rooms)
}

// CleanupExpired drops boards that have not been touched within the TTL.
func (m *Manager) CleanupExpired() int {
	cutoff := time.Now().Add(-m.ttl)
	stale := func(s *game.Session) bool { return s.LastAccess().Before(cutoff) }

	m.mu.Lock()
	defer m.mu.Unlock()

	soloExpired := lo.Keys(lo.PickBy(m.solo, func(_ string, s *game.Session) bool { return stale(s) }))
	roomExpired := lo.Keys(lo.PickBy(m.rooms, func(_ roomKey, s *game.Session) bool { return stale(s) }))
	for _, id := range soloExpired {
		delete(m.solo, id)
	}
	for _, k := range roomExpired {
		delete(m.rooms, k)
	}

	removed := len(soloExpired) + len(roomExpired)
	if removed > 0 {
		util.LogInfo("Cleaned up %d expired sessions", removed)
	}
	return removed
}
