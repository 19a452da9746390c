// Command voucherctl is the operator CLI: offline codec checks, staff tokens,
// seeding and batch runs that write artifacts to disk.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"coop-voucher/internal/config"
	"coop-voucher/internal/infra/logging"
	"coop-voucher/internal/infra/security"
)

var (
	cfgPath string
	devMode bool
)

var rootCmd = &cobra.Command{
	Use:           "voucherctl",
	Short:         "Operate the cooperative voucher engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "enable developer mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath, devMode)
	if err != nil {
		return nil, nil, err
	}
	logCfg := cfg.Log
	if !devMode {
		// keep stdout for command output
		logCfg.Level = "warn"
	}
	return cfg, logging.New(logCfg, devMode), nil
}

func loadCodec() (*security.Codec, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return security.NewCodec([]byte(cfg.Security.SigningSecret))
}
