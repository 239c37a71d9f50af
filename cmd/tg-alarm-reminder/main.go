package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/go-telegram/bot"

	"github.com/martvell/tg-alarm-reminder/pkg/alarm"
	botpkg "github.com/martvell/tg-alarm-reminder/pkg/bot"
	"github.com/martvell/tg-alarm-reminder/pkg/bot/alarmui"
	"github.com/martvell/tg-alarm-reminder/pkg/config"
	"github.com/martvell/tg-alarm-reminder/pkg/db"
	"github.com/martvell/tg-alarm-reminder/pkg/logger"
)

func main() {
	if err := config.LoadConfig("config.json"); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Configure(logger.Options{
		Level: config.AppConfig.Logging.Level,
		File:  config.AppConfig.Logging.File,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}

	if err := db.InitDB(config.AppConfig.Database); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	repo := db.NewReminderRepository(db.DB)
	presenter := botpkg.NewPresenter(config.AppConfig.Alarm.SnoozePresetsMinutes)

	var engineOpts []alarm.Option
	if config.AppConfig.Alarm.DefaultSnoozeMinutes > 0 {
		engineOpts = append(engineOpts,
			alarm.WithDefaultSnooze(time.Duration(config.AppConfig.Alarm.DefaultSnoozeMinutes)*time.Minute))
	}
	if config.AppConfig.Alarm.PresentationRetrySeconds > 0 {
		engineOpts = append(engineOpts,
			alarm.WithPresentationRetry(time.Duration(config.AppConfig.Alarm.PresentationRetrySeconds)*time.Second))
	}
	engine := alarm.New(repo, presenter, engineOpts...)

	handlers := botpkg.NewHandlers(engine, repo, presenter)

	opts := []bot.Option{
		bot.WithDefaultHandler(handlers.DefaultHandler),
	}
	b, err := bot.New(config.AppConfig.Telegram.Token, opts...)
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}
	presenter.Bind(b)

	b.RegisterHandler(bot.HandlerTypeMessageText, "/remind", bot.MatchTypePrefix, handlers.HandleRemind)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/list", bot.MatchTypeExact, handlers.HandleList)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/pause", bot.MatchTypePrefix, handlers.HandlePause)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/resume", bot.MatchTypePrefix, handlers.HandleResume)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/delete", bot.MatchTypePrefix, handlers.HandleDelete)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, alarmui.CallbackPrefix, bot.MatchTypePrefix, handlers.HandleAlarmCallback)

	go func() {
		if err := engine.Run(ctx); err != nil {
			logger.Error("alarm engine stopped with error", "error", err)
			cancel()
		}
	}()

	logger.Info("Starting bot...")
	b.Start(ctx)
}
