package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"coop-voucher/internal/bootstrap"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/usecase"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a template and register vouchers against it",
	Long: `Create a template and register --count vouchers for a cooperative.
Useful for local setups and load tests. Prints the template id and the
voucher ids, one per line, so the output feeds batch run --ids-file.`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	name, _ := flags.GetString("template-name")
	valueType, _ := flags.GetString("value-type")
	amount, _ := flags.GetInt64("amount")
	sites, _ := flags.GetStringSlice("sites")
	assoc, _ := flags.GetString("association")
	count, _ := flags.GetInt("count")
	if count <= 0 {
		return fmt.Errorf("--count must be positive")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	tpl, err := deps.TemplateUC.Create(ctx, usecase.CreateTemplateRequest{
		Name:          name,
		ValueType:     model.ValueType(valueType),
		DefaultAmount: amount,
		EligibleSites: sites,
	})
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# template %s\n", tpl.ID)

	for i := 1; i <= count; i++ {
		v, err := deps.VoucherUC.Register(ctx, usecase.RegisterRequest{
			TemplateID:  tpl.ID,
			Association: assoc,
			MemberID:    fmt.Sprintf("M-%05d", i),
			HolderName:  fmt.Sprintf("Member %d", i),
			Actor:       "voucherctl",
		})
		if err != nil {
			return fmt.Errorf("register voucher %d: %w", i, err)
		}
		fmt.Fprintln(out, v.ID)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)

	f := seedCmd.Flags()
	f.String("template-name", "Harvest gift", "template display name")
	f.String("value-type", string(model.ValueTypeCash), "cash_value or fixed_item")
	f.Int64("amount", 50_000, "template default amount")
	f.StringSlice("sites", nil, "eligible usage sites (empty means all)")
	f.String("association", "Green Valley Coop", "cooperative name")
	f.IntP("count", "n", 10, "how many vouchers to register")
}
