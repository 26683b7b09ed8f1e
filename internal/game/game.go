package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
)

type Classification string

const (
	Correct Classification = "correct"
	Present Classification = "present"
	Absent  Classification = "absent"
)

// Classes is the per-position evaluation of one guess.
type Classes [constants.WordLength]Classification

var ErrInvalidInput = errors.New(constants.ErrorCodeInvalidInput)

// NormalizeWord upper-cases w and checks it is exactly five ASCII letters.
func NormalizeWord(w string) (string, error) {
	w = strings.ToUpper(w)
	if len(w) != constants.WordLength {
		return "", fmt.Errorf("%w: %q has %d letters", ErrInvalidInput, w, len(w))
	}
	for i := 0; i < len(w); i++ {
		if w[i] < 'A' || w[i] > 'Z' {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidInput, w, w[i])
		}
	}
	return w, nil
}

// Evaluate classifies guess against target. Exact matches are settled first;
// the remaining target letters are then handed out left to right, so a guess
// with more copies of a letter than the target only gets as many PRESENT
// marks as there are unmatched copies.
func Evaluate(guess, target string) (Classes, error) {
	var result Classes
	g, err := NormalizeWord(guess)
	if err != nil {
		return result, fmt.Errorf("guess: %w", err)
	}
	t, err := NormalizeWord(target)
	if err != nil {
		return result, fmt.Errorf("target: %w", err)
	}

	var remaining [26]int
	for i := range constants.WordLength {
		if g[i] == t[i] {
			result[i] = Correct
		} else {
			remaining[t[i]-'A']++
		}
	}

	for i := range constants.WordLength {
		if result[i] == Correct {
			continue
		}
		if idx := g[i] - 'A'; remaining[idx] > 0 {
			result[i] = Present
			remaining[idx]--
		} else {
			result[i] = Absent
		}
	}
	return result, nil
}

// ScoreDelta is the multiplayer points earned by a single guess.
func ScoreDelta(classes Classes) int {
	return lo.CountBy(classes[:], func(c Classification) bool { return c == Correct })*constants.PointsCorrect +
		lo.CountBy(classes[:], func(c Classification) bool { return c == Present })*constants.PointsPresent
}

func IsWin(classes Classes) bool {
	return lo.EveryBy(classes[:], func(c Classification) bool { return c == Correct })
}

// WinBonus is added to the final score of a player who solved the word using
// rowsUsed guesses. Losing rounds earn no bonus.
func WinBonus(rowsUsed int, won bool) int {
	if !won || rowsUsed < 1 || rowsUsed > constants.MaxGuesses {
		return 0
	}
	return constants.WinBonusPerRow * (constants.MaxGuesses - rowsUsed + 1)
}
