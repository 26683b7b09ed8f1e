package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	models "github.com/CodeAndHammer/wordly/internal/models"
	store "github.com/CodeAndHammer/wordly/internal/store"
)

var (
	host  = Identity{ID: "host", Name: "Hana"}
	guest = Identity{ID: "guest", Name: "Gus"}
	third = Identity{ID: "third", Name: "Tia"}
)

func newTestCoordinator() *Coordinator {
	return NewCoordinator(store.NewMemoryStore())
}

// forEachCoordinator runs a test against both store backends. The redis
// backend is served by miniredis.
func forEachCoordinator(t *testing.T, run func(t *testing.T, c *Coordinator)) {
	t.Run("memory", func(t *testing.T) {
		run(t, newTestCoordinator())
	})
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s := store.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), store.WithKeyPrefix("test:"))
		t.Cleanup(func() { _ = s.Close() })
		run(t, NewCoordinator(s))
	})
}

// startedRoom creates a room with the given players, readies everybody and starts it.
func startedRoom(t *testing.T, c *Coordinator, players ...Identity) *models.Room {
	t.Helper()
	ctx := context.Background()
	r, err := c.CreateRoom(ctx, host, CreateOptions{Name: "Friday", Difficulty: models.DifficultyEasy})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for _, p := range players {
		if _, err := c.JoinRoom(ctx, r.ID, p); err != nil {
			t.Fatalf("JoinRoom(%s): %v", p.ID, err)
		}
		if _, err := c.ToggleReady(ctx, r.ID, p.ID); err != nil {
			t.Fatalf("ToggleReady(%s): %v", p.ID, err)
		}
	}
	r, err = c.StartGame(ctx, r.ID, host.ID, "apple")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return r
}

func TestCreateRoom(t *testing.T) {
	c := newTestCoordinator()
	r, err := c.CreateRoom(context.Background(), host, CreateOptions{Name: "  ", Difficulty: "weird"})
	if err != nil {
		t.Fatal(err)
	}
	if !validCode(r.ID) {
		t.Errorf("generated code %q is not six digits", r.ID)
	}
	if r.Status != models.RoomWaiting || r.Name != "Room" || r.Difficulty != models.DifficultyMedium {
		t.Errorf("unexpected room %+v", r)
	}
	p := r.Players[host.ID]
	if p == nil || p.Status != models.PlayerReady || p.Avatar.Emoji == "" || p.Avatar.Color == "" {
		t.Errorf("host should join ready with an avatar: %+v", p)
	}
}

func TestCreateRoomCustomCode(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	if _, err := c.CreateRoom(ctx, host, CreateOptions{Code: "12ab56"}); !errors.Is(err, ErrInvalidRoomCode) {
		t.Errorf("bad code error = %v", err)
	}
	if _, err := c.CreateRoom(ctx, host, CreateOptions{Code: "123456"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateRoom(ctx, guest, CreateOptions{Code: "123456"}); !errors.Is(err, ErrRoomCodeConflict) {
		t.Errorf("duplicate code error = %v, want ErrRoomCodeConflict", err)
	}
}

func TestCreateRoomCodeRace(t *testing.T) {
	forEachCoordinator(t, func(t *testing.T, c *Coordinator) {
		var wg sync.WaitGroup
		results := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := c.CreateRoom(context.Background(), Identity{ID: string(rune('a' + i))}, CreateOptions{Code: "999999"})
				results <- err
			}(i)
		}
		wg.Wait()
		close(results)
		created := 0
		for err := range results {
			switch {
			case err == nil:
				created++
			case !errors.Is(err, ErrRoomCodeConflict):
				t.Errorf("unexpected error %v", err)
			}
		}
		if created != 1 {
			t.Errorf("%d rooms created for one code, want exactly 1", created)
		}
	})
}

func TestJoinRoom(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	if _, err := c.JoinRoom(ctx, "000000", guest); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("join missing room = %v", err)
	}
	r, _ := c.CreateRoom(ctx, host, CreateOptions{})
	r, err := c.JoinRoom(ctx, r.ID, guest)
	if err != nil {
		t.Fatal(err)
	}
	if r.Players[guest.ID].Status != models.PlayerWaiting {
		t.Error("new joiners start waiting")
	}
	again, err := c.JoinRoom(ctx, r.ID, guest)
	if err != nil || len(again.Players) != 2 || again.Version != r.Version {
		t.Errorf("rejoin should be a no-op: players=%d version %d->%d err=%v", len(again.Players), r.Version, again.Version, err)
	}
}

func TestJoinRoomNotWaiting(t *testing.T) {
	c := newTestCoordinator()
	r := startedRoom(t, c, guest)
	if _, err := c.JoinRoom(context.Background(), r.ID, third); !errors.Is(err, ErrRoomNotJoinable) {
		t.Errorf("join playing room = %v, want ErrRoomNotJoinable", err)
	}
	if _, err := c.JoinRoom(context.Background(), r.ID, guest); err != nil {
		t.Errorf("a present player rejoining should succeed: %v", err)
	}
}

func TestToggleReady(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	r, _ := c.CreateRoom(ctx, host, CreateOptions{})
	_, _ = c.JoinRoom(ctx, r.ID, guest)

	r, _ = c.ToggleReady(ctx, r.ID, guest.ID)
	if r.Players[guest.ID].Status != models.PlayerReady || r.Status != models.RoomWaiting {
		t.Error("guest should be ready, room still waiting")
	}
	r, _ = c.ToggleReady(ctx, r.ID, guest.ID)
	if r.Players[guest.ID].Status != models.PlayerWaiting {
		t.Error("second toggle should return to waiting")
	}
	r, _ = c.ToggleReady(ctx, r.ID, host.ID)
	if r.Players[host.ID].Status != models.PlayerWaiting {
		t.Error("host toggles like everyone else")
	}
	if _, err := c.ToggleReady(ctx, r.ID, "nobody"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("toggle unknown player = %v", err)
	}
}

func TestStartGame(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	r, _ := c.CreateRoom(ctx, host, CreateOptions{})
	_, _ = c.JoinRoom(ctx, r.ID, guest)

	if _, err := c.StartGame(ctx, r.ID, guest.ID, "APPLE"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("guest start = %v, want ErrUnauthorized", err)
	}
	if _, err := c.StartGame(ctx, r.ID, host.ID, "APPLE"); !errors.Is(err, ErrPlayersNotReady) {
		t.Errorf("start with waiting guest = %v, want ErrPlayersNotReady", err)
	}
	_, _ = c.ToggleReady(ctx, r.ID, guest.ID)
	r, err := c.StartGame(ctx, r.ID, host.ID, "apple")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.RoomPlaying || r.CurrentWord != "APPLE" || r.StartedAt == nil {
		t.Errorf("unexpected started room %+v", r)
	}
	for id, p := range r.Players {
		if p.Status != models.PlayerPlaying || p.Score != 0 || len(p.Guesses) != 0 {
			t.Errorf("player %s not reset: %+v", id, p)
		}
	}
	if _, err := c.StartGame(ctx, r.ID, host.ID, "APPLE"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second start = %v, want ErrInvalidTransition", err)
	}
}

// Subscribers see either the waiting room or the fully started one.
func TestStartGameIsObservedAtomically(t *testing.T) {
	forEachCoordinator(t, func(t *testing.T, c *Coordinator) {
		ctx := context.Background()
		r, _ := c.CreateRoom(ctx, host, CreateOptions{})
		_, _ = c.JoinRoom(ctx, r.ID, guest)
		_, _ = c.ToggleReady(ctx, r.ID, guest.ID)

		var mu sync.Mutex
		var seen []*models.Room
		unsubscribe, err := c.Subscribe(ctx, r.ID, func(room *models.Room) {
			mu.Lock()
			seen = append(seen, room)
			mu.Unlock()
		})
		if err != nil {
			t.Fatal(err)
		}
		defer unsubscribe()

		if _, err := c.StartGame(ctx, r.ID, host.ID, "APPLE"); err != nil {
			t.Fatal(err)
		}
		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(seen) > 0 && seen[len(seen)-1].Status == models.RoomPlaying
		})

		mu.Lock()
		defer mu.Unlock()
		for _, room := range seen {
			playing := room.Status == models.RoomPlaying
			for _, p := range room.Players {
				if (p.Status == models.PlayerPlaying) != playing {
					t.Errorf("half-applied start observed: room %s, player %s", room.Status, p.Status)
				}
			}
			if playing && room.CurrentWord != "APPLE" {
				t.Error("playing snapshot without the word")
			}
		}
	})
}

func TestUpdatePlayerProgress(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	r := startedRoom(t, c, guest)

	r, err := c.UpdatePlayerProgress(ctx, r.ID, guest.ID, 1, 12, "crane")
	if err != nil {
		t.Fatal(err)
	}
	p := r.Players[guest.ID]
	if p.CurrentRow != 1 || p.Score != 12 || len(p.Guesses) != 1 || p.Guesses[0] != "CRANE" {
		t.Errorf("unexpected progress %+v", p)
	}
	again, err := c.UpdatePlayerProgress(ctx, r.ID, guest.ID, 1, 12, "crane")
	if err != nil || again.Players[guest.ID].Score != 12 || len(again.Players[guest.ID].Guesses) != 1 || again.Version != r.Version {
		t.Errorf("replayed row should be a no-op: %+v, %v", again.Players[guest.ID], err)
	}
	if _, err := c.UpdatePlayerProgress(ctx, r.ID, guest.ID, 0, 0, ""); !errors.Is(err, ErrInvalidProgress) {
		t.Errorf("row going backwards = %v", err)
	}
	if _, err := c.UpdatePlayerProgress(ctx, r.ID, guest.ID, 7, 0, ""); !errors.Is(err, ErrInvalidProgress) {
		t.Errorf("row past six = %v", err)
	}
	if _, err := c.UpdatePlayerProgress(ctx, r.ID, "nobody", 1, 0, ""); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("unknown player = %v", err)
	}
	if r.Players[host.ID].Score != 0 {
		t.Error("another player's progress must not change")
	}
}

func TestCompleteGameRanking(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	c.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	r := startedRoom(t, c, guest, third)

	r, ranked, err := c.CompleteGame(ctx, r.ID, guest.ID, 200, true)
	if err != nil || ranked || r.Status != models.RoomPlaying {
		t.Fatalf("first completion: ranked=%v status=%s err=%v", ranked, r.Status, err)
	}
	_, ranked, err = c.CompleteGame(ctx, r.ID, guest.ID, 999, true)
	if err != nil || ranked {
		t.Fatalf("repeat completion should be a no-op: ranked=%v err=%v", ranked, err)
	}
	_, _, _ = c.CompleteGame(ctx, r.ID, host.ID, 200, true)
	r, ranked, err = c.CompleteGame(ctx, r.ID, third.ID, 300, true)
	if err != nil || !ranked {
		t.Fatalf("last completion should rank: ranked=%v err=%v", ranked, err)
	}
	if r.Status != models.RoomCompleted || r.CompletedAt == nil {
		t.Errorf("room not completed: %+v", r)
	}
	want := map[string]int{third.ID: 1, guest.ID: 2, host.ID: 3}
	for id, pos := range want {
		if got := r.Players[id].Position; got != pos {
			t.Errorf("%s position = %d, want %d", id, got, pos)
		}
	}
	if r.Players[guest.ID].Score != 200 {
		t.Error("a repeated completion must not overwrite the score")
	}
}

// Two players completing at the same instant must produce one ranking.
func TestCompleteGameConcurrent(t *testing.T) {
	forEachCoordinator(t, func(t *testing.T, c *Coordinator) {
		for i := 0; i < 20; i++ {
			ctx := context.Background()
			r := startedRoom(t, c, guest)

			var mu sync.Mutex
			completedSnapshots := 0
			unsubscribe, err := c.Subscribe(ctx, r.ID, func(room *models.Room) {
				if room != nil && room.Status == models.RoomCompleted {
					mu.Lock()
					completedSnapshots++
					mu.Unlock()
				}
			})
			if err != nil {
				t.Fatal(err)
			}

			var wg sync.WaitGroup
			rankedCount := make(chan bool, 2)
			for _, id := range []string{host.ID, guest.ID} {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					_, ranked, err := c.CompleteGame(ctx, r.ID, id, 100, false)
					if err != nil {
						t.Errorf("CompleteGame(%s): %v", id, err)
					}
					rankedCount <- ranked
				}(id)
			}
			wg.Wait()
			close(rankedCount)

			n := 0
			for ranked := range rankedCount {
				if ranked {
					n++
				}
			}
			if n != 1 {
				t.Fatalf("ranking performed %d times, want 1", n)
			}

			final, _ := c.GetRoom(ctx, r.ID)
			positions := map[int]bool{}
			for _, p := range final.Players {
				positions[p.Position] = true
			}
			if final.Status != models.RoomCompleted || !positions[1] || !positions[2] || len(positions) != 2 {
				t.Fatalf("bad final room: status=%s positions=%v", final.Status, positions)
			}

			waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return completedSnapshots >= 1 })
			unsubscribe()
			mu.Lock()
			if completedSnapshots != 1 {
				t.Errorf("observed %d completed snapshots, want 1", completedSnapshots)
			}
			mu.Unlock()
		}
	})
}

func TestLeaveRoom(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	r, _ := c.CreateRoom(ctx, host, CreateOptions{})
	_, _ = c.JoinRoom(ctx, r.ID, guest)

	after, err := c.LeaveRoom(ctx, r.ID, guest.ID)
	if err != nil || after == nil || len(after.Players) != 1 {
		t.Fatalf("guest leave: %+v, %v", after, err)
	}
	if _, err := c.LeaveRoom(ctx, r.ID, guest.ID); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("second leave = %v", err)
	}
	after, err = c.LeaveRoom(ctx, r.ID, host.ID)
	if err != nil || after != nil {
		t.Fatalf("host leave should delete the room: %+v, %v", after, err)
	}
	if _, err := c.GetRoom(ctx, r.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("room still present after host left: %v", err)
	}
}

func TestLeaveRoomCompletesRound(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	r := startedRoom(t, c, guest)
	if _, _, err := c.CompleteGame(ctx, r.ID, host.ID, 80, true); err != nil {
		t.Fatal(err)
	}
	r, err := c.LeaveRoom(ctx, r.ID, guest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.RoomCompleted || r.Players[host.ID].Position != 1 {
		t.Errorf("remaining completed players should be ranked: %+v", r)
	}
}

func TestAvailableRoomsAndSweep(t *testing.T) {
	c := newTestCoordinator()
	ctx := context.Background()
	base := time.Now().UTC()
	c.now = func() time.Time { return base.Add(-48 * time.Hour) }
	old, _ := c.CreateRoom(ctx, host, CreateOptions{Code: "111111"})
	c.now = func() time.Time { return base }
	fresh, _ := c.CreateRoom(ctx, host, CreateOptions{Code: "222222"})
	playing := startedRoom(t, c)

	rooms, err := c.AvailableRooms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 || rooms[0].ID != fresh.ID || rooms[1].ID != old.ID {
		t.Errorf("AvailableRooms = %v", roomIDs(rooms))
	}

	removed, err := c.SweepStale(ctx, 24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("SweepStale removed %d, %v", removed, err)
	}
	if _, err := c.GetRoom(ctx, old.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Error("old room should be swept")
	}
	if _, err := c.GetRoom(ctx, playing.ID); err != nil {
		t.Error("recent rooms must survive the sweep")
	}
}

func TestRank(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	t2 := t1.Add(time.Second)
	got := Rank([]*models.Player{
		{ID: "slow", Score: 50, CompletedAt: &t2},
		{ID: "fast", Score: 50, CompletedAt: &t1},
		{ID: "best", Score: 90, CompletedAt: &t2},
		{ID: "none", Score: 50},
	})
	want := []string{"best", "fast", "slow", "none"}
	for i, p := range got {
		if p.ID != want[i] {
			t.Errorf("rank %d = %s, want %s", i+1, p.ID, want[i])
		}
	}
}

func roomIDs(rooms []*models.Room) []string {
	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	return ids
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
