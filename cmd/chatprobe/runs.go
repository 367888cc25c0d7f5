package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zhijianai/chatprobe/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent persisted harness runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("no database configured — set database_url or DATABASE_URL")
		}

		ctx := context.Background()
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		runs, err := db.RecentRuns(ctx, runsLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Shop", "Passed", "Failed", "Duration", "When"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.ID.String()[:8],
				r.ShopID,
				fmt.Sprintf("%d/%d", r.Succeeded, r.Total),
				r.Failed,
				fmt.Sprintf("%.1fs", r.Duration),
				r.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
}
