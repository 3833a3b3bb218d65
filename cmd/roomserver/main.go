// Command roomserver is the room runtime's single entrypoint: it wires
// every internal component (registry, store, dispatcher, economy,
// broadcaster, session manager, scheduler, outbox worker, realtime hub)
// against Redis and MySQL, then serves websocket and admin HTTP traffic
// until it receives a termination signal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcaderun/roomrt/internal/broadcast"
	"github.com/arcaderun/roomrt/internal/config"
	"github.com/arcaderun/roomrt/internal/dispatch"
	"github.com/arcaderun/roomrt/internal/domain"
	"github.com/arcaderun/roomrt/internal/economy"
	"github.com/arcaderun/roomrt/internal/games/race"
	"github.com/arcaderun/roomrt/internal/games/reveal"
	"github.com/arcaderun/roomrt/internal/gamemodule"
	"github.com/arcaderun/roomrt/internal/hub"
	"github.com/arcaderun/roomrt/internal/outbox"
	"github.com/arcaderun/roomrt/internal/registry"
	"github.com/arcaderun/roomrt/internal/scheduler"
	"github.com/arcaderun/roomrt/internal/session"
	"github.com/arcaderun/roomrt/internal/store"
	pkgmysql "github.com/arcaderun/roomrt/pkg/mysql"
	pkgredis "github.com/arcaderun/roomrt/pkg/redis"
	"github.com/arcaderun/roomrt/pkg/wss"
)

// passthroughDirectory satisfies session.UserDirectory without a real
// identity service: display names echo the userId. Identity storage is
// explicitly out of scope for this runtime.
type passthroughDirectory struct{}

func (passthroughDirectory) DisplayName(_ context.Context, userID string) string { return userID }

func newLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	switch cfg.App.Env {
	case "production", "prod":
		handler = slog.NewJSONHandler(os.Stdout, nil)
	default:
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.App.PodIP = os.Getenv("POD_IP")
	logger := newLogger(cfg)

	workerID := cfg.App.PodIP
	if workerID == "" {
		hostname, _ := os.Hostname()
		workerID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}

	rdb, err := pkgredis.NewClient(pkgredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	mysqlClient, err := pkgmysql.NewClient(pkgmysql.Config{
		Host:               cfg.MySQL.Host,
		Port:               cfg.MySQL.Port,
		User:               cfg.MySQL.User,
		Password:           cfg.MySQL.Password,
		DBName:             cfg.MySQL.DBName,
		MaxPoolSize:        cfg.Database.MaxPoolSize,
		MinPoolSize:        cfg.Database.MinPoolSize,
		ConnectionIdleLife: time.Duration(cfg.Database.ConnectionIdleLife) * time.Second,
		CommandTimeout:     time.Duration(cfg.Database.CommandTimeout) * time.Second,
	})
	if err != nil {
		logger.Error("failed to connect to mysql", "error", err)
		os.Exit(1)
	}
	defer mysqlClient.Close()

	if err := mysqlClient.DB().AutoMigrate(&domain.OutboxRecord{}, &domain.ArchivedGame{}); err != nil {
		logger.Error("failed to migrate outbox/archive tables", "error", err)
		os.Exit(1)
	}

	reg := registry.New(rdb, logger)
	roomStore := store.New(rdb, reg, logger)
	dispatcher := dispatch.New(logger)
	defer dispatcher.Shutdown()

	econ, err := economy.NewGormService(mysqlClient, cfg.Economy.InitialCoins, logger)
	if err != nil {
		logger.Error("failed to init economy service", "error", err)
		os.Exit(1)
	}
	seedAdminProfile(mysqlClient, cfg, logger)

	wssServer := wss.NewServer(context.Background(), &wss.Config{
		Path:            cfg.WSS.Path,
		AllowedOrigins:  cfg.WSS.AllowedOrigins,
		ReadBufferSize:  cfg.WSS.ReadBufferSize,
		WriteBufferSize: cfg.WSS.WriteBufferSize,
		WriteWaitSec:    cfg.WSS.WriteWaitSec,
		PongWaitSec:     cfg.WSS.PongWaitSec,
		MaxMessageSize:  cfg.WSS.MaxMessageSize,
	}, logger)

	broadcaster := broadcast.New(wssServer, logger)
	if err := broadcaster.EnableCluster(context.Background(), rdb, workerID); err != nil {
		logger.Error("failed to enable cluster broadcast relay", "error", err)
		os.Exit(1)
	}
	sessions := session.New(reg, broadcaster, passthroughDirectory{}, cfg.ReconnectionGrace(), logger)

	revealModule := reveal.New(roomStore, reg, econ, logger)
	reveal.Register(revealModule)
	raceModule := race.New(roomStore, reg, econ, logger)
	race.Register(raceModule)

	templates := map[string]hub.Template{
		"reveal-solo": {GameType: reveal.GameType, MaxSeats: 1, Visibility: domain.VisibilityPublic, EntryFee: 10},
		"race-4p":     {GameType: race.GameType, MaxSeats: 4, Visibility: domain.VisibilityPublic, EntryFee: 25},
	}

	realtimeHub := hub.New(reg, dispatcher, broadcaster, sessions, templates, mysqlClient.DB(), cfg.RateLimit.PermitLimit, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute, logger)
	wssServer.Register(realtimeHub)

	outboxWorker := outbox.New(mysqlClient, econ, logger)

	sched := scheduler.New(workerID, reg, dispatcher, broadcaster, mysqlClient.DB(), cfg.TickInterval(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	go outboxWorker.Run(ctx)
	go sessions.RunCleanupWorker(ctx)

	mux := http.NewServeMux()
	mux.Handle(cfg.WSS.Path, wssServer)
	mux.HandleFunc("/admin/rooms", adminRoomsHandler(cfg, reg, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("room runtime listening", "port", cfg.App.Port, "wsPath", cfg.WSS.Path, "workerId", workerID)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down room runtime")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown did not complete cleanly", "error", err)
	}
	logger.Info("room runtime exited")
}

// seedAdminProfile ensures the operator account named in configuration
// carries its configured starting balance. Identity storage is out of
// scope, so the admin "account" is just a player_profiles row keyed by
// the configured email, seeded once and left alone thereafter.
func seedAdminProfile(client *pkgmysql.Client, cfg *config.Config, logger *slog.Logger) {
	if cfg.AdminSeed.Email == "" {
		return
	}
	profile := domain.PlayerProfile{UserID: cfg.AdminSeed.Email, Coins: cfg.AdminSeed.InitialCoins}
	if err := client.DB().Where("user_id = ?", cfg.AdminSeed.Email).FirstOrCreate(&profile).Error; err != nil {
		logger.Warn("failed to seed admin profile", "email", cfg.AdminSeed.Email, "error", err)
	}
}

type adminRoomEntry struct {
	RoomID   string         `json:"roomId"`
	GameType string         `json:"gameType"`
	Meta     map[string]any `json:"meta"`
}

const adminRoomPageSize = int64(500)

// adminRoomsHandler lists every live room across every registered game
// type. It is guarded by a bearer header whose length must meet
// security.minimumApiKeyLength — this runtime carries no identity system
// to validate the key's ownership against, only its shape.
func adminRoomsHandler(cfg *config.Config, reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Api-Key")
		if len(key) < cfg.Security.MinimumAPIKeyLength {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		var entries []adminRoomEntry

		for _, desc := range gamemodule.All() {
			roomIDs, err := reg.GetRoomIdsByGameType(ctx, desc.GameType, 0, adminRoomPageSize)
			if err != nil {
				logger.Warn("admin listing failed to page room index", "gameType", desc.GameType, "error", err)
				continue
			}
			metas, err := desc.Engine.GetManyMetasAsync(ctx, roomIDs)
			if err != nil {
				logger.Warn("admin listing failed to fetch metas", "gameType", desc.GameType, "error", err)
				continue
			}
			for _, roomID := range roomIDs {
				entries = append(entries, adminRoomEntry{RoomID: roomID, GameType: desc.GameType, Meta: metas[roomID]})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}
}
