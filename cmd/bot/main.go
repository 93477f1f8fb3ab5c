package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"guildstats/internal/config"
	"guildstats/internal/database"
	"guildstats/internal/discord"
	"guildstats/internal/gameservers"
	"guildstats/internal/tracker"
	"guildstats/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("exiting", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	store := database.NewRepository(db)

	clock := quartz.NewReal()
	recorder := tracker.NewRecorder(store, log.Named("recorder"), clock)
	reader := tracker.NewReader(store, log.Named("reader"), clock)
	aggregator := tracker.NewAggregator(store, log.Named("aggregator"), clock, cfg.AggregateInterval)

	dispatcher := tracker.NewDispatcher(log.Named("dispatcher"), cfg.DispatcherWorkers, cfg.DispatcherQueueSize)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	bot, err := discord.New(cfg.DiscordToken, dispatcher, recorder, reader, log.Named("discord"))
	if err != nil {
		return err
	}
	if err := bot.Start(); err != nil {
		return err
	}
	defer bot.Stop()

	go func() {
		if err := aggregator.Run(ctx); err != nil {
			log.Error("aggregator stopped", zap.Error(err))
		}
	}()

	if cfg.PanelURL != "" {
		client := gameservers.NewClient(cfg.PanelURL, cfg.PanelUser, cfg.PanelPass)
		covers := gameservers.NewCoverFetcher(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.CoverDir, log.Named("covers"))
		poller := gameservers.NewPoller(store, client, covers, log.Named("gameservers"), clock, cfg.PanelPollInterval)
		go func() {
			if err := poller.Run(ctx); err != nil {
				log.Error("game server poller stopped", zap.Error(err))
			}
		}()
	}

	server := web.NewServer(log.Named("http"), reader, aggregator, store, cfg.CoverDir)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	return nil
}
