package handlers

import (
	"errors"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	config "github.com/CodeAndHammer/wordly/internal/config"
	constants "github.com/CodeAndHammer/wordly/internal/constants"
	game "github.com/CodeAndHammer/wordly/internal/game"
	room "github.com/CodeAndHammer/wordly/internal/room"
	session "github.com/CodeAndHammer/wordly/internal/session"
	store "github.com/CodeAndHammer/wordly/internal/store"
	util "github.com/CodeAndHammer/wordly/internal/util"
	words "github.com/CodeAndHammer/wordly/internal/words"
)

// App bundles everything the HTTP layer needs.
type App struct {
	Config    config.Config
	Rooms     *room.Coordinator
	Sessions  *session.Manager
	Driver    *session.Driver
	Words     *words.Provider
	Limiters  *LimiterPool
	StartTime time.Time

	upgrader websocket.Upgrader
}

func NewApp(cfg config.Config, rooms *room.Coordinator, sessions *session.Manager, provider *words.Provider) *App {
	app := &App{
		Config:    cfg,
		Rooms:     rooms,
		Sessions:  sessions,
		Driver:    session.NewDriver(rooms, sessions),
		Words:     provider,
		Limiters:  NewLimiterPool(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimiterTTL),
		StartTime: time.Now(),
	}
	app.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     app.checkOrigin,
	}
	return app
}

func NewRouter(app *App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(requestLoggerMiddleware())
	router.Use(securityHeadersMiddleware())
	if len(app.Config.ClientOrigins) > 0 {
		router.Use(corsMiddleware(app.Config.ClientOrigins))
	}
	router.Use(app.csrfMiddleware())
	router.Use(validateCSRFMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedPathsRegexs([]string{"^" + constants.RouteRooms + "/[^/]+" + constants.RoomFeedSuffix + "$"})))
	router.Use(cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	}))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	limited := app.Limiters.middleware()

	router.GET(constants.RouteHealthz, app.healthz)
	router.GET(constants.RouteStats, app.stats)

	solo := router.Group(constants.RouteGame)
	solo.GET("/state", app.soloState)
	solo.POST("/new", limited, app.newSolo)
	solo.POST("/letter", limited, app.soloLetter)
	solo.POST("/delete", limited, app.soloDelete)
	solo.POST("/submit", limited, app.soloSubmit)

	rooms := router.Group(constants.RouteRooms)
	rooms.GET("", app.listRooms)
	rooms.POST("", limited, app.createRoom)
	rooms.GET("/:id", app.getRoom)
	rooms.GET("/:id/board", app.roomBoard)
	rooms.GET("/:id"+constants.RoomFeedSuffix, app.roomFeed)
	rooms.POST("/:id/join", limited, app.joinRoom)
	rooms.POST("/:id/ready", limited, app.toggleReady)
	rooms.POST("/:id/start", limited, app.startGame)
	rooms.POST("/:id/letter", limited, app.roomLetter)
	rooms.POST("/:id/delete", limited, app.roomDelete)
	rooms.POST("/:id/submit", limited, app.roomSubmit)
	rooms.POST("/:id/leave", limited, app.leaveRoom)

	return router
}

func (app *App) playerID(c *gin.Context) string {
	return session.GetOrCreatePlayerID(c, app.Config.CookieMaxAge, app.Config.IsProduction)
}

func (app *App) healthz(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	soloCount, roomBoards := app.Sessions.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             app.Config.Environment(),
		"store":           app.Config.StoreBackend,
		"local_words":     app.Words.Local().Len(),
		"solo_sessions":   soloCount,
		"room_boards":     roomBoards,
		"active_limiters": app.Limiters.Len(),
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          time.Since(app.StartTime).Round(time.Second).String(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type letterRequest struct {
	Letter string `json:"letter" binding:"required"`
}

func parseLetter(c *gin.Context) (rune, bool) {
	var req letterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return 0, false
	}
	s := strings.TrimSpace(req.Letter)
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(strings.ToUpper(s))
	return r, r >= 'A' && r <= 'Z'
}

func badRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code})
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{game.ErrInvalidInput, http.StatusBadRequest},
	{room.ErrInvalidRoomCode, http.StatusBadRequest},
	{room.ErrInvalidProgress, http.StatusBadRequest},
	{game.ErrIncompleteGuess, http.StatusUnprocessableEntity},
	{game.ErrInvalidWord, http.StatusUnprocessableEntity},
	{game.ErrGameOver, http.StatusConflict},
	{game.ErrSubmissionPending, http.StatusConflict},
	{room.ErrRoomNotJoinable, http.StatusConflict},
	{room.ErrRoomCodeConflict, http.StatusConflict},
	{room.ErrInvalidTransition, http.StatusConflict},
	{room.ErrPlayersNotReady, http.StatusConflict},
	{room.ErrUnauthorized, http.StatusForbidden},
	{session.ErrNoActiveGame, http.StatusNotFound},
	{room.ErrRoomNotFound, http.StatusNotFound},
	{room.ErrPlayerNotFound, http.StatusNotFound},
}

// respondError maps domain errors to their HTTP status and wire code.
func respondError(c *gin.Context, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.AbortWithStatusJSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}
	if errors.Is(err, words.ErrNoWord) {
		util.LogError(util.WithRequestID(c.Request.Context(), "No word available: %v"), err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": constants.ErrorCodeWordUnavailable})
		return
	}
	if errors.Is(err, store.ErrConflict) {
		util.LogWarn(util.WithRequestID(c.Request.Context(), "Room store contention: %v"), err)
	} else {
		util.LogError(util.WithRequestID(c.Request.Context(), "Request failed: %v"), err)
	}
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": constants.ErrorCodeStoreUnavailable})
}
