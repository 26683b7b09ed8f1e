package words

import (
	"bufio"
	"context"
	"crypto/rand"
	_ "embed"
	"errors"
	"math/big"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	game "github.com/CodeAndHammer/wordly/internal/game"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

//go:embed data/words.txt
var embeddedWords string

var ErrEmptyList = errors.New("word list is empty")

// List is the local curated word list. It doubles as the offline validator.
type List struct {
	words []string
	set   map[string]struct{}
}

// Default returns the embedded list, parsed once.
var Default = sync.OnceValue(func() *List {
	return ParseList(embeddedWords)
})

// NewList keeps the well-formed five-letter entries of raw, upper-cased and
// de-duplicated, in their original order.
func NewList(raw []string) *List {
	cleaned := lo.FilterMap(raw, func(w string, _ int) (string, bool) {
		w = strings.TrimSpace(w)
		if w == "" {
			return "", false
		}
		norm, err := game.NormalizeWord(w)
		if err != nil {
			util.LogWarn("Skipping word %q: %v", w, err)
			return "", false
		}
		return norm, true
	})
	cleaned = lo.Uniq(cleaned)
	return &List{
		words: cleaned,
		set:   lo.SliceToMap(cleaned, func(w string) (string, struct{}) { return w, struct{}{} }),
	}
}

// ParseList reads one word per line.
func ParseList(text string) *List {
	var raw []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		raw = append(raw, sc.Text())
	}
	return NewList(raw)
}

func (l *List) Len() int { return len(l.words) }

// Words returns a copy of the list in its original order.
func (l *List) Words() []string { return slices.Clone(l.words) }

func (l *List) Contains(word string) bool {
	_, ok := l.set[strings.ToUpper(strings.TrimSpace(word))]
	return ok
}

// IsValidWord implements game.WordValidator using list membership.
func (l *List) IsValidWord(_ context.Context, word string) bool {
	return l.Contains(word)
}

func (l *List) Random() (string, error) {
	if len(l.words) == 0 {
		return "", ErrEmptyList
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(l.words))))
	if err != nil {
		util.LogWarn("Error generating random number: %v, using fallback", err)
		return l.words[0], nil
	}
	return l.words[n.Int64()], nil
}
