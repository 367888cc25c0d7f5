package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhijianai/chatprobe/internal/config"
	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "chatprobe",
	Short: "Test harness for the zhiyan chat-answer API",
	Long: `chatprobe drives multi-turn conversations against the zhiyan
conversational-commerce backend, validates the structured replies, and
produces an HTML report of the run.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to the config YAML (default chatprobe.yaml)")
	rootCmd.AddCommand(runCmd, chatCmd, loginCmd, productsCmd, runsCmd, stubCmd)
}

// loadConfig reads the config and wires logging before any command runs.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func newClient(cfg *config.Config) *zhiyan.Client {
	shop := zhiyan.Shop{
		Platform: cfg.Shop.Platform,
		Name:     cfg.Shop.Name,
		Account:  cfg.Shop.Account,
		ID:       cfg.Shop.ID,
	}
	return zhiyan.NewClient(cfg.BaseURL, shop, cfg.Timeout())
}

// maskToken shortens a bearer token for display.
func maskToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return fmt.Sprintf("%s...%s", token[:8], token[len(token)-4:])
}
