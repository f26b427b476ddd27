package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/yulbax/SecretSantaBot/internal/cache"
	"github.com/yulbax/SecretSantaBot/internal/config"
	"github.com/yulbax/SecretSantaBot/internal/database"
	"github.com/yulbax/SecretSantaBot/internal/flow"
	"github.com/yulbax/SecretSantaBot/internal/i18n"
	"github.com/yulbax/SecretSantaBot/internal/scheduler"
	"github.com/yulbax/SecretSantaBot/internal/telegram"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer store.Close()

	events, err := cache.Connect(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer events.Close()

	localizer, err := i18n.New()
	if err != nil {
		log.WithError(err).Fatal("failed to load locales")
	}

	bot, err := telegram.New(cfg.TelegramToken, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to telegram")
	}

	processor := flow.New(store, bot, localizer, events, log, bot.Username())
	if err := processor.LoadStates(ctx); err != nil {
		log.WithError(err).Fatal("failed to load conversation states")
	}

	sched := scheduler.New(store, processor, log)
	if err := sched.Start(cfg.SweepInterval); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}
	defer sched.Stop()

	log.Info("secret santa bot is up")
	bot.Listen(ctx, processor)
	log.Info("shutting down")
}
