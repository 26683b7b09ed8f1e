package models

import (
	"time"

	"github.com/samber/lo"
)

type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomPlaying   RoomStatus = "playing"
	RoomCompleted RoomStatus = "completed"
)

type PlayerStatus string

const (
	PlayerWaiting   PlayerStatus = "waiting"
	PlayerReady     PlayerStatus = "ready"
	PlayerPlaying   PlayerStatus = "playing"
	PlayerCompleted PlayerStatus = "completed"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty maps unknown or empty input to medium.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	default:
		return DifficultyMedium
	}
}

type Avatar struct {
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

type Player struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Avatar      Avatar       `json:"avatar"`
	Status      PlayerStatus `json:"status"`
	Score       int          `json:"score"`
	CurrentRow  int          `json:"currentRow"`
	Guesses     []string     `json:"guesses"`
	IsWinner    bool         `json:"isWinner"`
	Position    int          `json:"position,omitempty"`
	JoinedAt    time.Time    `json:"joinedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

type Room struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	CreatedBy   string             `json:"createdBy"`
	Difficulty  Difficulty         `json:"difficulty"`
	Status      RoomStatus         `json:"status"`
	CurrentWord string             `json:"currentWord,omitempty"`
	Players     map[string]*Player `json:"players"`
	CreatedAt   time.Time          `json:"createdAt"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	Version     int64              `json:"version"`
}

func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Guesses = append([]string(nil), p.Guesses...)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Clone returns a deep copy so stores never hand out shared mutable state.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Players = lo.MapValues(r.Players, func(p *Player, _ string) *Player { return p.Clone() })
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Redacted hides the target word while the round is still being played.
func (r *Room) Redacted() *Room {
	cp := r.Clone()
	if cp != nil && cp.Status != RoomCompleted {
		cp.CurrentWord = ""
	}
	return cp
}

func (r *Room) AllPlayers(status PlayerStatus) bool {
	if len(r.Players) == 0 {
		return false
	}
	return lo.EveryBy(lo.Values(r.Players), func(p *Player) bool { return p.Status == status })
}
