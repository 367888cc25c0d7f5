package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhijianai/chatprobe/internal/stub"
)

var (
	stubFailCount int
	stubLatencyMs int
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Serve a local stand-in for the chat backend",
	Long: `Serves a scriptable stub of the zhiyan API for local dry runs:
point base_url at it and any account/password logs in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s := stub.New(stub.Options{
			FailConversations: stubFailCount,
			Latency:           time.Duration(stubLatencyMs) * time.Millisecond,
			Logger:            slog.Default(),
		})

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.StubPort),
			Handler: s.Handler(),
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			slog.Info("stub backend listening", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down", "chat_calls", s.ChatCalls())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	},
}

func init() {
	stubCmd.Flags().IntVar(&stubFailCount, "fail", 0, "number of conversations to fail deliberately")
	stubCmd.Flags().IntVar(&stubLatencyMs, "latency", 0, "artificial reply latency in milliseconds")
}
