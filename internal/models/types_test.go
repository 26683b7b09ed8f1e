package models

import (
	"testing"
	"time"
)

func TestParseDifficulty(t *testing.T) {
	cases := map[string]Difficulty{
		"easy":   DifficultyEasy,
		"hard":   DifficultyHard,
		"medium": DifficultyMedium,
		"":       DifficultyMedium,
		"brutal": DifficultyMedium,
	}
	for in, want := range cases {
		if got := ParseDifficulty(in); got != want {
			t.Errorf("ParseDifficulty(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoomCloneIsDeep(t *testing.T) {
	now := time.Now()
	r := &Room{
		ID:          "123456",
		Status:      RoomPlaying,
		CurrentWord: "APPLE",
		Players: map[string]*Player{
			"a": {ID: "a", Guesses: []string{"CRANE"}, CompletedAt: &now},
		},
	}
	cp := r.Clone()
	cp.Players["a"].Guesses[0] = "OTHER"
	cp.Players["a"].Score = 99
	delete(cp.Players, "a")

	if r.Players["a"] == nil || r.Players["a"].Guesses[0] != "CRANE" || r.Players["a"].Score != 0 {
		t.Error("mutating the clone changed the original")
	}
}

func TestRedactedHidesWordUntilCompleted(t *testing.T) {
	r := &Room{Status: RoomPlaying, CurrentWord: "APPLE"}
	if r.Redacted().CurrentWord != "" {
		t.Error("word should be hidden while playing")
	}
	r.Status = RoomCompleted
	if r.Redacted().CurrentWord != "APPLE" {
		t.Error("word should be revealed once completed")
	}
}

func TestAllPlayers(t *testing.T) {
	r := &Room{Players: map[string]*Player{}}
	if r.AllPlayers(PlayerReady) {
		t.Error("an empty room has no ready players")
	}
	r.Players["a"] = &Player{Status: PlayerReady}
	r.Players["b"] = &Player{Status: PlayerWaiting}
	if r.AllPlayers(PlayerReady) {
		t.Error("b is not ready")
	}
	r.Players["b"].Status = PlayerReady
	if !r.AllPlayers(PlayerReady) {
		t.Error("all players are ready")
	}
}
