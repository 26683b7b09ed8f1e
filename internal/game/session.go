package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

var (
	ErrGameOver          = errors.New(constants.ErrorCodeGameOver)
	ErrIncompleteGuess   = errors.New(constants.ErrorCodeIncompleteGuess)
	ErrInvalidWord       = errors.New(constants.ErrorCodeInvalidWord)
	ErrSubmissionPending = errors.New(constants.ErrorCodeSubmissionPending)
)

// WordValidator decides whether a guess is a real word. Implementations are
// expected to recover from their own transport failures.
type WordValidator interface {
	IsValidWord(ctx context.Context, word string) bool
}

type ValidatorFunc func(ctx context.Context, word string) bool

func (f ValidatorFunc) IsValidWord(ctx context.Context, word string) bool { return f(ctx, word) }

// Snapshot is an immutable view of a Session.
type Snapshot struct {
	Board      Board     `json:"board"`
	CurrentRow int       `json:"currentRow"`
	CurrentCol int       `json:"currentCol"`
	LockedRows []int     `json:"lockedRows"`
	Outcome    Outcome   `json:"outcome"`
	Guesses    []string  `json:"guesses"`
	Score      int       `json:"score"`
	Pending    bool      `json:"pending"`
	Target     string    `json:"target,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	// Version increases with every change to the session.
	Version uint64 `json:"version"`
}

type SubmitResult struct {
	Row        int     `json:"row"`
	Guess      string  `json:"guess"`
	Classes    Classes `json:"classes"`
	ScoreDelta int     `json:"scoreDelta"`
	Outcome    Outcome `json:"outcome"`
	Reveal     Reveal  `json:"reveal"`
}

// Session is one player's board for one round. It is safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	target     string
	validator  WordValidator
	board      Board
	row        int
	col        int
	locked     [constants.MaxGuesses]bool
	outcome    Outcome
	guesses    []string
	score      int
	pending    bool
	startedAt  time.Time
	lastAccess time.Time

	version uint64
	subs    map[int]*watcher
	nextSub int
}

// NewSession starts a round for target. A nil validator accepts every
// well-formed guess.
func NewSession(target string, validator WordValidator) (*Session, error) {
	t, err := NormalizeWord(target)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	now := time.Now()
	return &Session{
		target:     t,
		validator:  validator,
		board:      newBoard(),
		outcome:    InProgress,
		guesses:    []string{},
		startedAt:  now,
		lastAccess: now,
		subs:       make(map[int]*watcher),
	}, nil
}

// AddLetter types r into the current row. It reports whether the board changed.
func (s *Session) AddLetter(r rune) bool {
	r = unicode.ToUpper(r)
	if r < 'A' || r > 'Z' {
		return false
	}
	s.mu.Lock()
	if !s.editableLocked() || s.col >= constants.WordLength {
		s.mu.Unlock()
		return false
	}
	s.board[s.row][s.col] = Tile{Letter: string(r), State: TileFilled}
	s.col++
	s.changedLocked()
	s.mu.Unlock()
	return true
}

// DeleteLetter clears the last typed tile. It reports whether the board changed.
func (s *Session) DeleteLetter() bool {
	s.mu.Lock()
	if !s.editableLocked() || s.col <= 0 {
		s.mu.Unlock()
		return false
	}
	s.col--
	s.board[s.row][s.col] = Tile{State: TileEmpty}
	s.changedLocked()
	s.mu.Unlock()
	return true
}

// Submit validates and scores the current row. The lock is released while
// the validator runs; typing and further submits are refused until it returns.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	s.mu.Lock()
	switch {
	case s.outcome.Terminal():
		s.mu.Unlock()
		return nil, ErrGameOver
	case s.pending:
		s.mu.Unlock()
		return nil, ErrSubmissionPending
	case s.col != constants.WordLength || s.locked[s.row]:
		s.mu.Unlock()
		return nil, ErrIncompleteGuess
	}
	row := s.row
	guess := s.board.word(row)
	s.pending = true
	s.changedLocked()
	validator := s.validator
	s.mu.Unlock()

	valid := validator == nil || validator.IsValidWord(ctx, guess)

	s.mu.Lock()
	s.pending = false
	if !valid {
		s.changedLocked()
		s.mu.Unlock()
		util.LogInfo(util.WithRequestID(ctx, "Rejected guess %s: not in dictionary"), guess)
		return nil, fmt.Errorf("%w: %s", ErrInvalidWord, guess)
	}

	classes, err := Evaluate(guess, s.target)
	if err != nil {
		s.changedLocked()
		s.mu.Unlock()
		return nil, err
	}

	s.locked[row] = true
	for i, c := range classes {
		s.board[row][i].State = TileState(c)
	}
	s.guesses = append(s.guesses, guess)
	delta := ScoreDelta(classes)
	s.score += delta

	switch {
	case IsWin(classes):
		s.outcome = Won
	case row+1 == constants.MaxGuesses:
		s.outcome = Lost
		s.row = constants.MaxGuesses
	default:
		s.row = row + 1
		s.col = 0
	}

	result := &SubmitResult{
		Row:        row,
		Guess:      guess,
		Classes:    classes,
		ScoreDelta: delta,
		Outcome:    s.outcome,
		Reveal:     buildReveal(row, guess, classes),
	}
	s.changedLocked()
	s.mu.Unlock()
	return result, nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Target reports the word being guessed.
func (s *Session) Target() string {
	return s.target
}

func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// RowsUsed counts locked rows.
func (s *Session) RowsUsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.guesses)
}

// FinalScore is the accumulated per-guess score plus the win bonus.
// It is only meaningful once the session is terminal.
func (s *Session) FinalScore() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score + WinBonus(len(s.guesses), s.outcome == Won)
}

// Subscribe calls fn with the current snapshot and then after every change,
// on a goroutine of its own. Snapshots arrive in version order; a slow
// subscriber skips straight to the newest. The returned func removes the
// subscription.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	w := newWatcher(fn)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = w
	w.push(s.snapshotLocked())
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			w.close()
		})
	}
}

func (s *Session) editableLocked() bool {
	return !s.outcome.Terminal() && !s.pending && s.row < constants.MaxGuesses && !s.locked[s.row]
}

func (s *Session) touchLocked() {
	s.lastAccess = time.Now()
}

// changedLocked records a change and hands the new snapshot to subscribers.
func (s *Session) changedLocked() {
	s.touchLocked()
	s.version++
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, w := range s.subs {
		w.push(snap)
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Board:      s.board,
		CurrentRow: s.row,
		CurrentCol: s.col,
		LockedRows: []int{},
		Outcome:    s.outcome,
		Guesses:    append([]string{}, s.guesses...),
		Score:      s.score,
		Pending:    s.pending,
		StartedAt:  s.startedAt,
		Version:    s.version,
	}
	for i, l := range s.locked {
		if l {
			snap.LockedRows = append(snap.LockedRows, i)
		}
	}
	if s.outcome.Terminal() {
		snap.Target = s.target
	}
	return snap
}
