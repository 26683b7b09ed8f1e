package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	config "github.com/CodeAndHammer/wordly/internal/config"
	handlers "github.com/CodeAndHammer/wordly/internal/handlers"
	room "github.com/CodeAndHammer/wordly/internal/room"
	session "github.com/CodeAndHammer/wordly/internal/session"
	store "github.com/CodeAndHammer/wordly/internal/store"
	util "github.com/CodeAndHammer/wordly/internal/util"
	words "github.com/CodeAndHammer/wordly/internal/words"
)

func main() {
	cfg := config.Load()

	logger, err := util.NewLogger(cfg.IsProduction, cfg.LogLevel)
	if err != nil {
		util.SetLogger(zap.NewExample())
		util.LogFatal("Failed to build logger: %v", err)
	}
	util.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	util.LogInfo("Starting Wordly in %s mode", cfg.Environment())

	roomStore, err := openRoomStore(cfg)
	if err != nil {
		util.LogFatal("Failed to open room store: %v", err)
	}
	defer func() {
		if err := roomStore.Close(); err != nil {
			util.LogWarn("Room store close: %v", err)
		}
	}()

	local := words.Default()
	util.LogInfo("Loaded %d words from embedded list", local.Len())

	var source words.Source
	if cfg.WordsDatabaseDSN != "" {
		if src, err := openWordSource(cfg, local); err != nil {
			util.LogWarn("Word database unavailable, using local list only: %v", err)
		} else {
			source = src
		}
	}

	provider := words.NewProvider(source, local, cfg.WordSourceTimeout)
	dictionary := words.NewDictionary(cfg.DictionaryURL, cfg.DictionaryTimeout, local)
	sessions := session.NewManager(provider, dictionary, cfg.SessionTTL)
	rooms := room.NewCoordinator(roomStore)

	app := handlers.NewApp(cfg, rooms, sessions, provider)
	router := handlers.NewRouter(app)

	jobs := startCleanupJobs(app, cfg)

	startServer(cfg.Port, router, jobs)
}

func openRoomStore(cfg config.Config) (store.RoomStore, error) {
	if cfg.StoreBackend != config.StoreRedis {
		util.LogInfo("Using in-memory room store")
		return store.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rdb, err := store.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	return store.NewRedisStore(rdb, store.WithRoomTTL(cfg.RoomTTL)), nil
}

// openWordSource connects the words database and seeds every difficulty
// that comes up empty from the local list.
func openWordSource(cfg config.Config, local *words.List) (*words.DBSource, error) {
	db, err := words.OpenPostgres(cfg.WordsDatabaseDSN)
	if err != nil {
		return nil, err
	}
	src, err := words.NewDBSource(db)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := words.SeedEmpty(ctx, src, local.Words()); err != nil {
		return nil, err
	}
	util.LogInfo("Using words database as primary word source")
	return src, nil
}

func startCleanupJobs(app *handlers.App, cfg config.Config) *cron.Cron {
	c := cron.New()

	add := func(spec, name string, job func()) {
		if _, err := c.AddFunc(spec, job); err != nil {
			util.LogFatal("Failed to schedule %s job: %v", name, err)
		}
	}

	// The cleanups log what they remove.
	add("@every 10m", "session cleanup", func() {
		app.Sessions.CleanupExpired()
	})
	add("@every 30m", "rate limiter cleanup", func() {
		app.Limiters.Cleanup()
	})
	add("@every 1h", "room sweep", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := app.Rooms.SweepStale(ctx, cfg.RoomTTL); err != nil {
			util.LogWarn("Room sweep failed: %v", err)
		}
	})

	c.Start()
	util.LogInfo("Started cleanup jobs for sessions, rate limiters and rooms")
	return c
}

func startServer(port string, router *gin.Engine, jobs *cron.Cron) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		<-jobs.Stop().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}
