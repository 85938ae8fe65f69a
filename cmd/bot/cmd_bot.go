package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/hopeconnect/internal/bot"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Serve HopeConnect on Telegram",
	Long: `Serve HopeConnect as a Telegram bot. Every chat gets its own profile.

The token comes from telegram.token in the config file or TELEGRAM_TOKEN.`,
	RunE: runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Telegram.Token == "" {
		return errors.New("telegram token is required (telegram.token or TELEGRAM_TOKEN)")
	}

	b, err := bot.New(a.cfg.Telegram.Token, a.cfg.Telegram.Timeout, a.storage, a.gateway, a.logger)
	if err != nil {
		a.logger.Error("Failed to create bot", zap.Error(err))
		return err
	}
	b.SetDebug(a.cfg.Telegram.Debug)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Bot error", zap.Error(err))
		return err
	}
	return nil
}
