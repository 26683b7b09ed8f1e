package handlers

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	game "github.com/CodeAndHammer/wordly/internal/game"
	models "github.com/CodeAndHammer/wordly/internal/models"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
)

type feedMessage struct {
	Type  string         `json:"type"`
	Data  *models.Room   `json:"data,omitempty"`
	Board *game.Snapshot `json:"board,omitempty"`
}

// boardWatch keeps one subscription on the board the feed's player is
// playing, moving it when the room starts a new word.
type boardWatch struct {
	mu      sync.Mutex
	current *game.Session
	cancel  func()
	stopped bool
}

func (b *boardWatch) follow(s *game.Session, fn func(game.Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped || s == b.current {
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.current, b.cancel = s, s.Subscribe(fn)
}

func (b *boardWatch) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// playerBoard finds the board the player should see for r, if any.
func (app *App) playerBoard(r *models.Room, playerID string) *game.Session {
	if _, ok := r.Players[playerID]; !ok {
		return nil
	}
	switch r.Status {
	case models.RoomPlaying:
		s, err := app.Sessions.RoomSession(r.ID, playerID, r.CurrentWord)
		if err != nil {
			return nil
		}
		return s
	case models.RoomCompleted:
		s, _ := app.Sessions.ExistingRoomSession(r.ID, playerID)
		return s
	}
	return nil
}

// checkOrigin allows requests without an Origin header (non-browser
// clients) and otherwise requires the same host or a configured origin.
func (app *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(app.Config.ClientOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// roomFeed streams redacted room snapshots over a websocket until the room
// is deleted or the client goes away. A player in the room also gets their
// own board as it changes.
func (app *App) roomFeed(c *gin.Context) {
	roomID := c.Param("id")
	playerID := app.playerID(c)
	if _, err := app.Rooms.GetRoom(c.Request.Context(), roomID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := app.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.LogWarn(util.WithRequestID(c.Request.Context(), "Websocket upgrade failed: %v"), err)
		return
	}
	defer conn.Close()

	log := util.Logger().With(zap.String("room", roomID), zap.String("player", playerID))
	log.Info("feed opened")
	defer log.Info("feed closed")

	// Latest snapshot wins; the writer never falls behind by more than one.
	updates := make(chan *models.Room, 1)
	boardUpdates := make(chan game.Snapshot, 1)
	closed := make(chan struct{})
	boards := &boardWatch{}
	defer boards.stop()
	sendBoard := func(snap game.Snapshot) {
		select {
		case <-boardUpdates:
		default:
		}
		select {
		case boardUpdates <- snap:
		case <-closed:
		}
	}
	unsubscribe, err := app.Rooms.Subscribe(c.Request.Context(), roomID, func(r *models.Room) {
		if r != nil {
			if s := app.playerBoard(r, playerID); s != nil {
				boards.follow(s, sendBoard)
			}
		}
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- r:
		case <-closed:
		}
	})
	if err != nil {
		log.Warn("feed subscribe failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unavailable"),
			time.Now().Add(feedWriteWait))
		return
	}
	defer unsubscribe()

	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case r := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if r == nil {
				_ = conn.WriteJSON(feedMessage{Type: "closed"})
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"))
				return
			}
			if err := conn.WriteJSON(feedMessage{Type: "room", Data: r.Redacted()}); err != nil {
				log.Debug("feed write failed", zap.Error(err))
				return
			}
		case snap := <-boardUpdates:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(feedMessage{Type: "board", Board: &snap}); err != nil {
				log.Debug("feed write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
