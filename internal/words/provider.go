package words

import (
	"context"
	"errors"
	"fmt"
	"time"

	game "github.com/CodeAndHammer/wordly/internal/game"
	models "github.com/CodeAndHammer/wordly/internal/models"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

var ErrNoWord = errors.New("no word available")

// Source supplies target words from somewhere other than the embedded list.
type Source interface {
	RandomWord(ctx context.Context, difficulty models.Difficulty) (string, error)
}

// Provider picks target words, preferring the remote source and falling back
// to the local list whenever the source fails or returns garbage.
type Provider struct {
	source  Source
	local   *List
	timeout time.Duration
}

// NewProvider accepts a nil source, in which case only the local list is used.
func NewProvider(source Source, local *List, timeout time.Duration) *Provider {
	if local == nil {
		local = Default()
	}
	return &Provider{source: source, local: local, timeout: timeout}
}

func (p *Provider) Local() *List { return p.local }

func (p *Provider) Word(ctx context.Context, difficulty models.Difficulty) (string, error) {
	difficulty = models.ParseDifficulty(string(difficulty))

	if p.source != nil {
		w, err := p.fromSource(ctx, difficulty)
		if err == nil {
			return w, nil
		}
		util.LogWarn(util.WithRequestID(ctx, "Word source failed for %s, using local list: %v"), difficulty, err)
	}

	w, err := p.local.Random()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoWord, err)
	}
	return w, nil
}

func (p *Provider) fromSource(ctx context.Context, difficulty models.Difficulty) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	w, err := p.source.RandomWord(ctx, difficulty)
	if err != nil {
		return "", err
	}
	if w == "" {
		return "", ErrNoWord
	}
	return game.NormalizeWord(w)
}
