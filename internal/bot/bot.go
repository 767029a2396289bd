package bot

import (
	"context"
	"fmt"
	"time"

	"flight-price-checker/internal/bot/handlers"
	"flight-price-checker/internal/bot/middleware"
	"flight-price-checker/internal/bot/utils"
	"flight-price-checker/internal/config"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Bot represents Telegram bot. It is also the monitor.Notifier used by the
// scheduler.
type Bot struct {
	bot    *tele.Bot
	logger *zap.Logger
}

func New(
	cfg *config.Config,
	counter middleware.Counter,
	toucher middleware.Toucher,
	logger *zap.Logger,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.TelegramToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	return newBot(pref, counter, toucher, logger)
}

func newBot(pref tele.Settings, counter middleware.Counter, toucher middleware.Toucher, logger *zap.Logger) (*Bot, error) {
	pref.OnError = func(err error, c tele.Context) {
		logger.Error("telegram error", zap.Error(err))
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &Bot{
		bot:    b,
		logger: logger,
	}

	bot.setupMiddleware(counter, toucher)

	logger.Info("bot initialized successfully")

	return bot, nil
}

func (b *Bot) setupMiddleware(counter middleware.Counter, toucher middleware.Toucher) {
	b.bot.Use(middleware.Recovery(b.logger))

	b.bot.Use(middleware.Logger(b.logger))

	b.bot.Use(middleware.RateLimit(counter, b.logger))

	b.bot.Use(middleware.Activity(toucher, b.logger))
}

// Register wires the command handlers. It is called once the scheduler the
// handlers report on exists.
func (b *Bot) Register(ctx *handlers.Context) {
	b.bot.Handle("/start", handlers.HandleStart(ctx))
	b.bot.Handle("/help", handlers.HandleHelp(ctx))
	b.bot.Handle("/monitor", handlers.HandleMonitor(ctx))
	b.bot.Handle("/status", handlers.HandleStatus(ctx))
	b.bot.Handle("/cancel", handlers.HandleCancel(ctx))
	b.bot.Handle("/settings", handlers.HandleSettings(ctx))
	b.bot.Handle("/set", handlers.HandleSet(ctx))

	b.bot.Handle(&tele.Btn{Unique: utils.CancelUnique}, handlers.HandleCancelCallback(ctx))

	admin := b.bot.Group()
	admin.Use(middleware.AdminOnly(ctx.Registry.IsAdmin, b.logger))
	admin.Handle("/allstatus", handlers.HandleAllStatus(ctx))
	admin.Handle("/allcancel", handlers.HandleAllCancel(ctx))
	admin.Handle("/stats", handlers.HandleStats(ctx))

	b.logger.Info("handlers registered")
}

// Notify sends a MarkdownV2 message to ownerID's private chat. It gives up
// when ctx is done; the send itself may still complete in the background.
func (b *Bot) Notify(ctx context.Context, ownerID int64, text string) error {
	done := make(chan error, 1)
	go func() {
		_, err := b.bot.Send(&tele.User{ID: ownerID}, text, tele.ModeMarkdownV2, tele.NoPreview)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			b.logger.Warn("failed to send notification",
				zap.Int64("user_id", ownerID),
				zap.Error(err),
			)
			return fmt.Errorf("send to %d: %w", ownerID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to %d: %w", ownerID, ctx.Err())
	}
}

func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("starting bot...")

	go b.bot.Start()

	<-ctx.Done()

	b.logger.Info("stopping bot...")
	b.bot.Stop()

	b.logger.Info("bot stopped")
	return nil
}
