package main

import (
	"fmt"

	"github.com/spf13/cobra"

	apiv1 "coop-voucher/internal/infra/api/apiv1"
)

var tokenCmd = &cobra.Command{
	Use:   "token STAFF_ID",
	Short: "Mint a staff bearer token for the admin API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		tok, err := apiv1.NewAuthManager(cfg.Security.JWTSecret, cfg.Security.JWTTTL).Mint(args[0], role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("role", apiv1.RoleAdmin, "admin or cashier")
}
