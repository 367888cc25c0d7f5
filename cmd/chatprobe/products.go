package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zhijianai/chatprobe/internal/zhiyan"
)

var (
	productsPage     int
	productsPageSize int
	productsSearch   string
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the shop catalogue (for picking a product_index)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		client := newClient(cfg)
		login, err := client.Login(ctx, cfg.Account, cfg.Password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		page, err := client.Products(ctx, login.AccessToken, zhiyan.ProductQuery{
			ShopID:   cfg.Shop.ID,
			Page:     productsPage,
			PageSize: productsPageSize,
			Search:   productsSearch,
		})
		if err != nil {
			return fmt.Errorf("product list: %w", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Index", "Product ID", "Title"})
		for i, item := range page.Items {
			t.AppendRow(table.Row{i, item.ID(), item.ProductTitle})
		}
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d total, page %d", page.Total, productsPage)})
		t.Render()
		return nil
	},
}

func init() {
	productsCmd.Flags().IntVar(&productsPage, "page", 1, "catalogue page")
	productsCmd.Flags().IntVar(&productsPageSize, "page-size", 10, "items per page")
	productsCmd.Flags().StringVar(&productsSearch, "search", "", "title search filter")
}
