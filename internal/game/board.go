package game

import (
	"time"

	"github.com/samber/lo"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
)

type TileState string

const (
	TileEmpty   TileState = "empty"
	TileFilled  TileState = "filled"
	TileCorrect TileState = "correct"
	TilePresent TileState = "present"
	TileAbsent  TileState = "absent"
)

type Tile struct {
	Letter string    `json:"letter"`
	State  TileState `json:"state"`
}

type Board [constants.MaxGuesses][constants.WordLength]Tile

type Outcome string

const (
	InProgress Outcome = "in_progress"
	Won        Outcome = "won"
	Lost       Outcome = "lost"
)

func (o Outcome) Terminal() bool {
	return o == Won || o == Lost
}

func newBoard() Board {
	var b Board
	for r := range b {
		copy(b[r][:], lo.Times(constants.WordLength, func(_ int) Tile {
			return Tile{State: TileEmpty}
		}))
	}
	return b
}

func (b *Board) word(row int) string {
	return lo.Reduce(b[row][:], func(acc string, t Tile, _ int) string { return acc + t.Letter }, "")
}

// TileReveal is one step of the flip animation that follows a locked row.
type TileReveal struct {
	Index      int       `json:"index"`
	Letter     string    `json:"letter"`
	State      TileState `json:"state"`
	DelayMs    int64     `json:"delayMs"`
	DurationMs int64     `json:"durationMs"`
	Bounce     bool      `json:"bounce"`
}

// Reveal is the time-ordered presentation schedule for a submitted row.
type Reveal struct {
	Row           int          `json:"row"`
	Tiles         []TileReveal `json:"tiles"`
	SettleAfterMs int64        `json:"settleAfterMs"`
}

func buildReveal(row int, guess string, classes Classes) Reveal {
	tiles := lo.Times(constants.WordLength, func(i int) TileReveal {
		return TileReveal{
			Index:      i,
			Letter:     guess[i : i+1],
			State:      TileState(classes[i]),
			DelayMs:    (time.Duration(i) * constants.TileFlipStagger).Milliseconds(),
			DurationMs: constants.TileFlipDuration.Milliseconds(),
			Bounce:     classes[i] == Correct,
		}
	})
	last := tiles[len(tiles)-1]
	return Reveal{Row: row, Tiles: tiles, SettleAfterMs: last.DelayMs + last.DurationMs}
}
