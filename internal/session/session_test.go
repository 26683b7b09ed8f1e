package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	game "github.com/CodeAndHammer/wordly/internal/game"
	models "github.com/CodeAndHammer/wordly/internal/models"
	room "github.com/CodeAndHammer/wordly/internal/room"
	store "github.com/CodeAndHammer/wordly/internal/store"
	words "github.com/CodeAndHammer/wordly/internal/words"
)

func testManager(ttl time.Duration) *Manager {
	list := words.ParseList("apple\ncrane")
	return NewManager(words.NewProvider(nil, words.ParseList("apple"), 0), list, ttl)
}

func typeWord(s *game.Session, w string) {
	for _, r := range w {
		s.AddLetter(r)
	}
}

func TestGetOrCreatePlayerID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	id := GetOrCreatePlayerID(c, time.Hour, false)
	if id == "" || len(w.Result().Cookies()) != 1 {
		t.Fatalf("expected a new cookie, got id=%q cookies=%v", id, w.Result().Cookies())
	}

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.AddCookie(&http.Cookie{Name: constants.PlayerCookieName, Value: id})
	if got := GetOrCreatePlayerID(c2, time.Hour, false); got != id {
		t.Errorf("existing cookie not reused: %q != %q", got, id)
	}
	if len(w2.Result().Cookies()) != 0 {
		t.Error("no cookie should be set for a known player")
	}

	w3 := httptest.NewRecorder()
	c3, _ := gin.CreateTestContext(w3)
	c3.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c3.Request.AddCookie(&http.Cookie{Name: constants.PlayerCookieName, Value: "forged"})
	if got := GetOrCreatePlayerID(c3, time.Hour, false); got == "forged" {
		t.Error("malformed player ids must be replaced")
	}
}

func TestSoloRoundRecordsStats(t *testing.T) {
	m := testManager(time.Hour)
	ctx := context.Background()
	if _, err := m.SubmitSolo(ctx, "p1"); !errors.Is(err, ErrNoActiveGame) {
		t.Errorf("submit without a game = %v", err)
	}
	s, err := m.NewSolo(ctx, "p1", models.DifficultyEasy)
	if err != nil {
		t.Fatal(err)
	}
	typeWord(s, "CRANE")
	if _, err := m.SubmitSolo(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if m.Stats("p1").GamesPlayed != 0 {
		t.Error("stats must not change mid-round")
	}
	typeWord(s, "APPLE")
	res, err := m.SubmitSolo(ctx, "p1")
	if err != nil || res.Outcome != game.Won {
		t.Fatalf("winning submit: %+v, %v", res, err)
	}
	st := m.Stats("p1")
	if st.GamesPlayed != 1 || st.Wins != 1 || st.CurrentStreak != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestSoloInvalidWord(t *testing.T) {
	m := testManager(time.Hour)
	s, _ := m.NewSolo(context.Background(), "p1", models.DifficultyMedium)
	typeWord(s, "ZZZZZ")
	if _, err := m.SubmitSolo(context.Background(), "p1"); !errors.Is(err, game.ErrInvalidWord) {
		t.Errorf("submit of unknown word = %v", err)
	}
}

func TestRoomSessionFollowsWord(t *testing.T) {
	m := testManager(time.Hour)
	a, _ := m.RoomSession("r1", "p1", "apple")
	b, _ := m.RoomSession("r1", "p1", "APPLE")
	if a != b {
		t.Error("same word should reuse the board")
	}
	c, _ := m.RoomSession("r1", "p1", "CRANE")
	if c == a {
		t.Error("a new word should start a new board")
	}
	if _, err := m.RoomSession("r1", "p1", "bad"); err == nil {
		t.Error("malformed word should be rejected")
	}
}

func TestCleanupExpired(t *testing.T) {
	m := testManager(time.Millisecond)
	_, _ = m.NewSolo(context.Background(), "p1", models.DifficultyEasy)
	_, _ = m.RoomSession("r1", "p1", "APPLE")
	time.Sleep(5 * time.Millisecond)
	if n := m.CleanupExpired(); n != 2 {
		t.Errorf("CleanupExpired removed %d, want 2", n)
	}
	if solo, rooms := m.Counts(); solo != 0 || rooms != 0 {
		t.Errorf("counts after cleanup = %d/%d", solo, rooms)
	}
}

func TestDriverFullRound(t *testing.T) {
	ctx := context.Background()
	rooms := room.NewCoordinator(store.NewMemoryStore())
	m := testManager(time.Hour)
	d := NewDriver(rooms, m)

	host := room.Identity{ID: "host", Name: "Host"}
	guest := room.Identity{ID: "guest", Name: "Guest"}
	r, _ := rooms.CreateRoom(ctx, host, room.CreateOptions{})
	_, _ = rooms.JoinRoom(ctx, r.ID, guest)

	if _, err := d.AddLetter(ctx, r.ID, guest.ID, 'A'); !errors.Is(err, room.ErrInvalidTransition) {
		t.Errorf("typing before start = %v", err)
	}
	_, _ = rooms.ToggleReady(ctx, r.ID, guest.ID)
	if _, err := rooms.StartGame(ctx, r.ID, host.ID, "APPLE"); err != nil {
		t.Fatal(err)
	}

	for _, l := range "CRANE" {
		if _, err := d.AddLetter(ctx, r.ID, guest.ID, l); err != nil {
			t.Fatal(err)
		}
	}
	res, after, err := d.Submit(ctx, r.ID, guest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p := after.Players[guest.ID]; p.CurrentRow != 1 || p.Score != res.ScoreDelta || len(p.Guesses) != 1 {
		t.Errorf("progress not recorded: %+v", p)
	}

	for _, l := range "APPLE" {
		_, _ = d.AddLetter(ctx, r.ID, guest.ID, l)
	}
	res, after, err = d.Submit(ctx, r.ID, guest.ID)
	if err != nil || res.Outcome != game.Won {
		t.Fatalf("winning submit: %+v, %v", res, err)
	}
	gp := after.Players[guest.ID]
	if gp.Status != models.PlayerCompleted || !gp.IsWinner || gp.Score != 12+50+game.WinBonus(2, true) {
		t.Errorf("guest not completed correctly: %+v", gp)
	}
	if after.Status != models.RoomPlaying {
		t.Error("room must wait for the host")
	}
	if _, err := d.AddLetter(ctx, r.ID, guest.ID, 'X'); !errors.Is(err, game.ErrGameOver) {
		t.Errorf("typing after finishing = %v", err)
	}
	if board, err := d.Board(ctx, r.ID, guest.ID); err != nil || board.Outcome != game.Won {
		t.Errorf("board after finishing: %v, %v", board.Outcome, err)
	}

	for i := 0; i < 6; i++ {
		for _, l := range "CRANE" {
			_, _ = d.AddLetter(ctx, r.ID, host.ID, l)
		}
		if _, after, err = d.Submit(ctx, r.ID, host.ID); err != nil {
			t.Fatalf("host row %d: %v", i, err)
		}
	}
	if after.Status != models.RoomCompleted {
		t.Fatalf("room should complete after the host loses, got %s", after.Status)
	}
	if after.Players[guest.ID].Position != 1 || after.Players[host.ID].Position != 2 {
		t.Errorf("positions guest=%d host=%d", after.Players[guest.ID].Position, after.Players[host.ID].Position)
	}

	if _, err := d.Leave(ctx, r.ID, guest.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.ExistingRoomSession(r.ID, guest.ID); ok {
		t.Error("leaving should discard the board")
	}
}

// flakyStore fails the next Transact once armed.
type flakyStore struct {
	store.RoomStore
	failNext atomic.Bool
}

var errStoreDown = errors.New("connection reset")

func (f *flakyStore) Transact(ctx context.Context, roomID string, fn store.Mutator) (*models.Room, error) {
	if f.failNext.CompareAndSwap(true, false) {
		return nil, errStoreDown
	}
	return f.RoomStore.Transact(ctx, roomID, fn)
}

func TestDriverRecoversFailedCompletion(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{RoomStore: store.NewMemoryStore()}
	rooms := room.NewCoordinator(flaky)
	d := NewDriver(rooms, testManager(time.Hour))

	host := room.Identity{ID: "host", Name: "Host"}
	r, _ := rooms.CreateRoom(ctx, host, room.CreateOptions{})
	if _, err := rooms.StartGame(ctx, r.ID, host.ID, "APPLE"); err != nil {
		t.Fatal(err)
	}

	for _, l := range "APPLE" {
		_, _ = d.AddLetter(ctx, r.ID, host.ID, l)
	}
	flaky.failNext.Store(true)
	if _, _, err := d.Submit(ctx, r.ID, host.ID); !errors.Is(err, errStoreDown) {
		t.Fatalf("first submit = %v, want the store error", err)
	}
	if board, _ := d.Board(ctx, r.ID, host.ID); board.Outcome != game.Won {
		t.Fatalf("board outcome = %s", board.Outcome)
	}

	res, after, err := d.Submit(ctx, r.ID, host.ID)
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if res != nil {
		t.Errorf("retry should not score a new row: %+v", res)
	}
	p := after.Players[host.ID]
	if after.Status != models.RoomCompleted || p.Status != models.PlayerCompleted || !p.IsWinner {
		t.Fatalf("room=%s player=%s winner=%v", after.Status, p.Status, p.IsWinner)
	}
	if p.CurrentRow != 1 || len(p.Guesses) != 1 || p.Position != 1 {
		t.Errorf("replayed progress %+v", p)
	}
	if p.Score != 50+game.WinBonus(1, true) {
		t.Errorf("score = %d, want %d", p.Score, 50+game.WinBonus(1, true))
	}
}

func TestDriverReplaysUnrecordedRow(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{RoomStore: store.NewMemoryStore()}
	rooms := room.NewCoordinator(flaky)
	d := NewDriver(rooms, testManager(time.Hour))

	host := room.Identity{ID: "host", Name: "Host"}
	r, _ := rooms.CreateRoom(ctx, host, room.CreateOptions{})
	_, _ = rooms.StartGame(ctx, r.ID, host.ID, "APPLE")

	for _, l := range "CRANE" {
		_, _ = d.AddLetter(ctx, r.ID, host.ID, l)
	}
	flaky.failNext.Store(true)
	if _, _, err := d.Submit(ctx, r.ID, host.ID); err == nil {
		t.Fatal("expected the progress write to fail")
	}

	// The next keystroke brings the room up to date.
	if _, err := d.AddLetter(ctx, r.ID, host.ID, 'A'); err != nil {
		t.Fatal(err)
	}
	current, _ := rooms.GetRoom(ctx, r.ID)
	if p := current.Players[host.ID]; p.CurrentRow != 1 || len(p.Guesses) != 1 || p.Guesses[0] != "CRANE" || p.Score != 12 {
		t.Errorf("row not replayed: %+v", p)
	}

	for _, l := range "PPLE" {
		_, _ = d.AddLetter(ctx, r.ID, host.ID, l)
	}
	res, after, err := d.Submit(ctx, r.ID, host.ID)
	if err != nil || res.Outcome != game.Won {
		t.Fatalf("winning submit: %+v, %v", res, err)
	}
	p := after.Players[host.ID]
	if after.Status != models.RoomCompleted || len(p.Guesses) != 2 || p.Score != 12+50+game.WinBonus(2, true) {
		t.Errorf("final player %+v, room %s", p, after.Status)
	}
}
