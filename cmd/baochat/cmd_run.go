package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baobao-chat/baochat/internal/client"
	"github.com/baobao-chat/baochat/internal/realtime"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the chat client and keep the session alive",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	c, err := client.New(cfg, slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	// Fall back to configured credentials when no session resumed.
	if !c.Session().Authenticated() {
		if cfg.Auth.UserName == "" {
			return fmt.Errorf("not signed in: run `baochat login` or set auth.user_name in config")
		}
		if err := c.SignIn(ctx, cfg.Auth.UserName, cfg.Auth.Password); err != nil {
			return fmt.Errorf("sign in as %s: %w", cfg.Auth.UserName, err)
		}
	}

	c.Channel().SubscribeState(func(state realtime.State) {
		slog.Info("realtime channel state", "state", state.String())
	})
	c.State().Subscribe(func() {
		slog.Debug("chat state changed",
			"conversations", len(c.State().Conversations()),
			"unread", c.State().TotalUnread(),
		)
	})

	identity := c.Session().Identity()
	slog.Info("baochat started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"server", cfg.Server.BaseURL,
		"user", identity.UserName,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	slog.Info("shutting down", "signal", sig)
	c.Channel().Close()
	return nil
}
