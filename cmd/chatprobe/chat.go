package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhijianai/chatprobe/internal/conversation"
	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run a single multi-turn conversation with verbose Q/A output",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Questions) == 0 {
			return fmt.Errorf("no questions configured — add a questions list to the config file")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := newClient(cfg)
		login, err := client.Login(ctx, cfg.Account, cfg.Password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		var product *zhiyan.Product
		if cfg.UseProduct {
			product, err = client.ProductByIndex(ctx, login.AccessToken, cfg.Shop.ID, cfg.ProductIndex)
			if err != nil {
				return fmt.Errorf("product lookup: %w", err)
			}
			fmt.Printf("Product under test: %s\n\n", product.Title)
		}

		driver := conversation.NewDriver(client, cfg.Wait(), slog.Default())
		driver.OnTurn = func(_, turn int, question, reply string) {
			fmt.Printf("Q%d: %s\nA%d: %s\n\n", turn, question, turn, reply)
		}

		result := driver.Run(ctx, 0, login.AccessToken, product, cfg.Questions)
		if !result.Success {
			return fmt.Errorf("conversation failed at turn %d: %s", len(result.Turns)+1, result.Error)
		}
		fmt.Printf("Conversation passed: %d turns, %d messages, %.2fs\n", len(result.Turns), result.TotalMessages, result.Duration)
		return nil
	},
}
