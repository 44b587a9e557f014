package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arenaworks/arena/internal/config"
	"github.com/arenaworks/arena/internal/db"
	"github.com/arenaworks/arena/internal/events"
	"github.com/arenaworks/arena/internal/service"
	"github.com/arenaworks/arena/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	database, err := db.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to connect to DB:", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB, cfg.Database.MigrationsURL); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	var notifier events.Notifier = events.LogNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier, err := events.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatal("Failed to create Kafka notifier:", err)
		}
		notifier = kafkaNotifier
	}
	defer notifier.Close()

	playerStore := store.NewPlayerStore(database)
	queueStore := store.NewQueueStore(database)
	tournamentStore := store.NewTournamentStore(database)

	matchService := service.NewMatchService(database, tournamentStore, playerStore, notifier)
	queueService := service.NewQueueService(database, queueStore, playerStore, tournamentStore, notifier, cfg.Matchmaking)
	tournamentService := service.NewTournamentService(database, tournamentStore, playerStore, matchService, notifier, cfg.Tournament)
	defer tournamentService.Close()

	if err := tournamentService.Resume(context.Background()); err != nil {
		log.Fatal("Failed to resume open tournaments:", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: newRouter(playerStore, queueService, tournamentService),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("Server shutdown:", err)
	}
}
