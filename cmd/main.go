package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/parley-chat/parley/config"
	"github.com/parley-chat/parley/internal/directory"
	"github.com/parley-chat/parley/internal/handlers"
	"github.com/parley-chat/parley/internal/identity"
	"github.com/parley-chat/parley/internal/routers"
	"github.com/parley-chat/parley/internal/session"
	"github.com/parley-chat/parley/internal/store"
	"github.com/parley-chat/parley/internal/ws"
	"github.com/parley-chat/parley/state"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// initialize the application
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appState, err := state.InitAppState(ctx, stop)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application state")
	}
	defer appState.Close()

	notifier := store.NewNotifier(appState.Redis, 4)
	if err := notifier.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start change notifier")
	}

	mongoDB := config.Conf.DATABASE.Mongo.Database
	msgStore := store.NewMongoMessageStore(appState.Mongo, mongoDB, notifier, config.Conf.CHAT.DeleteChunkSize)
	partStore := store.NewMongoParticipantStore(appState.Mongo, mongoDB, notifier)

	dir := directory.NewDirectory(appState.DB)
	digester := directory.NewDigester(config.Conf.CHAT.DigestSalt)
	idProvider := identity.NewProvider(appState.JwtSecret.Private, appState.JwtSecret.Public)

	wsHub := ws.NewHub()
	log.Info().Msg("Websocket hub initialized")

	sessionCfg := session.Config{
		AppName:       config.Conf.App.Name,
		MaxMessageLen: config.Conf.CHAT.MaxMessageLen,
	}

	wsHandler := ws.NewHandler(wsHub, idProvider, dir, digester, msgStore, partStore, sessionCfg)
	log.Info().Msg("Websocket handler initialized")

	r := routers.NewRouter(wsHandler, handlers.NewIdentityHandler(idProvider), handlers.NewHealthHandler(wsHub))

	server := &http.Server{
		Addr:         config.Conf.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// serve the application
	go func() {
		log.Info().Msgf("Starting server on http://localhost%s", config.Conf.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(fmt.Sprintf("ListenAndServe failed: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown initiated...")
	// gracefully shutdown the application
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Graceful shutdown failed: %v\n", err)
	} else {
		fmt.Println("Server exited gracefully.")
	}
	wsHub.Close()
}
