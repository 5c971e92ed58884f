package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"medication-reminder/internal/bot"
	"medication-reminder/internal/config"
	"medication-reminder/internal/logging"
	"medication-reminder/internal/model"
	"medication-reminder/internal/notify"
	"medication-reminder/internal/repository"
	"medication-reminder/internal/router"
	"medication-reminder/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	prefs := repository.NewPreferenceRepository(db, cfg.Namespace)
	medications := repository.NewMedicationRepository(prefs)
	logger.Info(ctx, "preferences opened", "db", cfg.DatabaseURL, "namespace", prefs.Namespace())

	// A record that cannot be decoded stops the app, same as a corrupt store would.
	saved, err := medications.Load(ctx)
	if err != nil {
		log.Fatalf("load saved medication: %v", err)
	}
	var seed []model.Medication
	if saved != nil {
		seed = append(seed, *saved)
		logger.Info(ctx, "restored saved medication", "name", saved.Name)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("create bot api: %v", err)
	}
	logger.Info(ctx, "bot authorized", "account", api.Self.UserName)

	var (
		poster    notify.Poster
		dismisser bot.Dismisser
	)
	switch cfg.NotifyBackend {
	case config.NotifyLog:
		poster = notify.NewLogPoster(logger.With("component", "notify"))
	default:
		telegramPoster := notify.NewTelegramPoster(api, cfg.TelegramChatID, logger.With("component", "notify"))
		poster = telegramPoster
		dismisser = telegramPoster
	}
	center := notify.NewCenter(poster, logger)
	center.RegisterChannel(ctx, notify.MedicationChannel())

	screen := service.NewScreen(
		service.NewMedicationStore(seed...),
		notify.NewMedicationGateway(center),
		medications.Save,
		logger.With("component", "screen"),
		service.WithLocation(cfg.Location),
	)

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router.NewRouter(screen),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info(ctx, "status api listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "status api stopped", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	telegramBot := bot.New(api, screen, cfg.TelegramChatID, dismisser, logger)

	logger.Info(ctx, "medication reminder started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "bot stopped with error", "err", err)
	}
	logger.Info(ctx, "shutdown complete")
}
