package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"coop-voucher/internal/bootstrap"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/adapter"
	"coop-voucher/internal/infra/render"
	"coop-voucher/internal/usecase"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run batch operations against the store",
}

var batchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply an operation to many vouchers",
	Long: `Apply issue, recall, dispose, redeem, print or send to a set of
vouchers, chosen by --ids-file or by --template/--status. Print and send
write one PDF per voucher into --out.`,
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	op, _ := flags.GetString("operation")
	reason, _ := flags.GetString("reason")
	site, _ := flags.GetString("site")
	idsFile, _ := flags.GetString("ids-file")
	templateID, _ := flags.GetString("template")
	statuses, _ := flags.GetStringSlice("status")
	outDir, _ := flags.GetString("out")
	key, _ := flags.GetString("idempotency-key")
	retry, _ := flags.GetBool("retry")
	actor, _ := flags.GetString("actor")
	asJSON, _ := flags.GetBool("json")

	req := usecase.StartBatchRequest{
		Name:           name,
		OwnerID:        actor,
		TemplateID:     templateID,
		Operation:      op,
		Reason:         reason,
		SiteID:         site,
		IdempotencyKey: key,
	}
	if idsFile != "" {
		ids, err := readIDs(idsFile)
		if err != nil {
			return err
		}
		req.VoucherIDs = ids
	} else {
		f := &model.VoucherFilter{TemplateID: templateID}
		for _, raw := range statuses {
			st, err := model.ParseStatus(raw)
			if err != nil {
				return err
			}
			f.Statuses = append(f.Statuses, st)
		}
		req.Filter = f
	}

	var sink adapter.ArtifactSink
	if op == "print" || op == "send" {
		ds, err := render.NewDirSink(outDir)
		if err != nil {
			return err
		}
		sink = ds
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	run, err := deps.BatchUC.Start(ctx, req, sink)
	if err != nil {
		return err
	}
	if retry && !run.Replayed && run.Result.FailureCount > 0 && ctx.Err() == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "retrying %d failed items\n", run.Result.FailureCount)
		again, err := deps.BatchUC.RetryFailed(ctx, req, run.Result, sink)
		if err != nil {
			return err
		}
		printRun(cmd, run, false)
		run = again
	}
	printRun(cmd, run, asJSON)
	if run.Result.FailureCount > 0 {
		return fmt.Errorf("%d of %d items failed", run.Result.FailureCount, len(run.Result.Results))
	}
	return nil
}

func printRun(cmd *cobra.Command, run *usecase.BatchRun, asJSON bool) {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(run.Result)
		return
	}
	b := run.Batch
	if run.Replayed {
		fmt.Fprintln(out, "idempotency key already used; showing the earlier batch")
	}
	fmt.Fprintf(out, "batch %s (%s): %s, %d ok, %d failed, %d artifacts\n",
		b.ID, b.Operation, b.Status, b.SuccessCount, b.FailureCount, b.GeneratedCount)
	for _, it := range run.Result.Results {
		if !it.Success {
			fmt.Fprintf(out, "  %s\t%s\t%s\n", it.ID, it.ErrorCode, it.Message)
		}
	}
	if b.ShareToken != "" {
		fmt.Fprintf(out, "share token: %s (expires %s)\n", b.ShareToken, b.ShareExpiresAt.Format("2006-01-02 15:04"))
	}
}

// readIDs reads one voucher id per line; blank lines and # comments are skipped.
func readIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, sc.Err()
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchRunCmd)

	f := batchRunCmd.Flags()
	f.String("name", "", "batch name (required)")
	f.StringP("operation", "o", "", "issue|recall|dispose|redeem|print|send (required)")
	f.String("reason", "", "recall reason")
	f.String("site", "", "usage site for redeem")
	f.String("ids-file", "", "file with one voucher id per line")
	f.String("template", "", "select vouchers of this template")
	f.StringSlice("status", nil, "select vouchers in these statuses")
	f.String("out", "out", "directory for print/send artifacts")
	f.String("idempotency-key", "", "reject a concurrent run with the same key")
	f.String("actor", "voucherctl", "actor recorded in the audit trail")
	f.Bool("retry", false, "re-run the failed items once")
	f.Bool("json", false, "print per-item results as JSON")
	_ = batchRunCmd.MarkFlagRequired("name")
	_ = batchRunCmd.MarkFlagRequired("operation")
}
