package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zhijianai/chatprobe/internal/config"
	"github.com/zhijianai/chatprobe/internal/conversation"
	"github.com/zhijianai/chatprobe/internal/events"
	"github.com/zhijianai/chatprobe/internal/harness"
	"github.com/zhijianai/chatprobe/internal/mailer"
	"github.com/zhijianai/chatprobe/internal/report"
	"github.com/zhijianai/chatprobe/internal/store"
	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

var runCount int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run concurrent conversations and report the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Questions) == 0 {
			return fmt.Errorf("no questions configured — add a questions list to the config file")
		}
		count := cfg.Concurrency
		if runCount > 0 {
			count = runCount
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := newClient(cfg)
		login, err := client.Login(ctx, cfg.Account, cfg.Password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		slog.Info("logged in", "token", maskToken(login.AccessToken))

		var product *zhiyan.Product
		if cfg.UseProduct {
			product, err = client.ProductByIndex(ctx, login.AccessToken, cfg.Shop.ID, cfg.ProductIndex)
			if err != nil {
				return fmt.Errorf("product lookup: %w", err)
			}
			fmt.Printf("Product under test: %s (%s)\n", product.Title, product.ID)
		}

		fmt.Printf("Starting %d concurrent conversations, %d questions each\n\n", count, len(cfg.Questions))

		driver := conversation.NewDriver(client, cfg.Wait(), slog.Default())
		h := harness.New(driver, slog.Default())
		summary := h.Run(ctx, harness.Options{
			Count:     count,
			Token:     login.AccessToken,
			Product:   product,
			Questions: cfg.Questions,
			OnResult:  printProgress,
		})

		printSummary(summary)

		if err := deliverReport(ctx, cfg, product, summary); err != nil {
			slog.Error("report delivery failed", "error", err)
		}

		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d conversations failed", summary.Failed, summary.Total)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runCount, "count", 0, "override the configured concurrency")
}

// printProgress emits one line per conversation as it completes.
func printProgress(r conversation.Result) {
	if r.Success {
		fmt.Printf("[conversation %d] passed in %.2fs, %d messages\n", r.ConversationID, r.Duration, r.TotalMessages)
		return
	}
	fmt.Printf("[conversation %d] FAILED after %.2fs: %s\n", r.ConversationID, r.Duration, r.Error)
}

func printSummary(summary harness.Summary) {
	fmt.Println()
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "User", "Status", "Messages", "Duration", "Detail"})
	for _, r := range summary.Results {
		status, detail := "PASS", ""
		if !r.Success {
			status, detail = "FAIL", r.Error
		}
		t.AppendRow(table.Row{r.ConversationID, r.Username, status, r.TotalMessages, fmt.Sprintf("%.2fs", r.Duration), detail})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d/%d", summary.Succeeded, summary.Total), "", fmt.Sprintf("%.2fs", summary.Duration), ""})
	t.Render()
}

// deliverReport writes the HTML/JSON report and pushes it to the configured
// side channels. Side-channel errors are reported but never mask the test
// outcome.
func deliverReport(ctx context.Context, cfg *config.Config, product *zhiyan.Product, summary harness.Summary) error {
	data := report.Data{
		GeneratedAt: time.Now(),
		ShopName:    cfg.Shop.Name,
		Product:     product,
		Questions:   cfg.Questions,
		Summary:     summary,
	}

	htmlPath, err := report.Write(cfg.ReportDir, data)
	if err != nil {
		return err
	}
	slog.Info("report written", "path", htmlPath)

	zipPath := filepath.Join(filepath.Dir(cfg.ReportDir), "chatprobe-report.zip")
	if err := report.Zip(cfg.ReportDir, zipPath); err != nil {
		return err
	}

	var runID string
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database unavailable", "error", err)
		} else {
			defer db.Close()
			id, err := db.WriteRun(ctx, cfg.Shop.ID, summary)
			if err != nil {
				slog.Error("failed to persist run", "error", err)
			} else {
				runID = id.String()
				slog.Info("run persisted", "run_id", runID)
			}
		}
	}

	if cfg.NatsURL != "" {
		nc, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("nats unavailable", "error", err)
		} else {
			defer nc.Close()
			ev := events.RunCompletedEvent{
				RunID:      runID,
				ShopID:     cfg.Shop.ID,
				Total:      summary.Total,
				Succeeded:  summary.Succeeded,
				Failed:     summary.Failed,
				Duration:   summary.Duration,
				Questions:  len(cfg.Questions),
				FinishedAt: time.Now(),
			}
			for _, r := range summary.Failures() {
				ev.Failures = append(ev.Failures, events.ConversationFailure{
					ConversationID: r.ConversationID,
					Username:       r.Username,
					Error:          r.Error,
				})
			}
			if err := nc.PublishRunCompleted(ev); err != nil {
				slog.Error("failed to publish run event", "error", err)
			}
		}
	}

	if cfg.SMTP.Enabled() {
		html, err := report.Render(data)
		if err != nil {
			return err
		}
		m := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, slog.Default())
		subject := fmt.Sprintf("chatprobe: %d/%d conversations passed", summary.Succeeded, summary.Total)
		if err := m.SendReport(cfg.SMTP.Recipients, subject, string(html), zipPath); err != nil {
			slog.Error("failed to mail report", "error", err)
		}
	}

	return nil
}
