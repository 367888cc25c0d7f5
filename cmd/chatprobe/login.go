package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check that the configured credentials can authenticate",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := newClient(cfg)
		login, err := client.Login(context.Background(), cfg.Account, cfg.Password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		fmt.Printf("login ok: token %s, expires in %ds\n", maskToken(login.AccessToken), login.ExpiresIn)
		return nil
	},
}
