package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fmorante/lexagenda-be/internal/api"
	"github.com/fmorante/lexagenda-be/internal/config"
	"github.com/fmorante/lexagenda-be/internal/database"
	"github.com/fmorante/lexagenda-be/internal/localstore"
	"github.com/fmorante/lexagenda-be/internal/logger"
	"github.com/fmorante/lexagenda-be/internal/monitoring"
	"github.com/fmorante/lexagenda-be/internal/remote"
	"github.com/fmorante/lexagenda-be/internal/services"
	"github.com/fmorante/lexagenda-be/internal/websocket"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up the remote document store client
	remoteClient := remote.New(cfg.RemoteBaseURL, cfg.RemoteTimeout)

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	store := localstore.New(db)
	caseSource := services.NewCaseEventSource(remoteClient)
	syncLogService := services.NewSyncLogService(db)
	userService := services.NewUserService(db)
	agendaService := services.NewAgendaService(store, caseSource, remoteClient, remoteClient, syncLogService, hub, cfg.RemoteTimeout)

	// Set up and run the background stat updater
	statUpdater := monitoring.NewStatUpdater(hub)
	go statUpdater.Run()

	// Set up and run the background agenda refresher
	refresher, err := monitoring.NewRefresher(cfg.RefreshCron, agendaService, store)
	if err != nil {
		log.Fatal().Err(err).Str("cron", cfg.RefreshCron).Msg("Invalid refresh cron expression")
	}
	go refresher.Run()

	// Set up router
	router := api.NewRouter(hub, agendaService, userService, syncLogService, statUpdater)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	statUpdater.Stop()
	refresher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
