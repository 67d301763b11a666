package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-tagger/internal/batch"
	"github.com/Veraticus/spice-tagger/internal/cli"
	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/config"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/ofx"
	"github.com/Veraticus/spice-tagger/internal/plaid"
	"github.com/Veraticus/spice-tagger/internal/sheets"
)

const dateLayout = "2006-01-02"

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Predict tags for a whole statement",
		Long: `Predict tags for every transaction in a statement. Each distinct payee
is predicted once, and the results come back in statement order.

Examples:
  # Tag an OFX export and remember every confident answer
  tagger batch ofx ~/Downloads/maybank_mar.ofx --confirm-decided

  # Tag the last month from Plaid, review the unsure ones and export to Sheets
  tagger batch plaid --start 2024-03-01 --end 2024-03-31 --review --sheets`,
	}

	flags := cmd.PersistentFlags()
	flags.Bool("sheets", false, "Export the results to Google Sheets")
	flags.Bool("confirm-decided", false, "Remember every decided prediction")
	flags.Bool("review", false, "Ask about payees the engine could not decide")
	flags.Bool("include-credits", false, "Predict inflows too")
	flags.Int("workers", 0, "Concurrent predictions (default: batch.workers or CPU count)")
	flags.Bool("no-progress", false, "Hide the progress bar")

	ofxCmd := &cobra.Command{
		Use:   "ofx <file>",
		Short: "Predict tags for an OFX/QFX statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, func(ctx context.Context) ([]model.Transaction, error) {
				return loadOFX(ctx, args[0])
			})
		},
	}

	plaidCmd := &cobra.Command{
		Use:   "plaid",
		Short: "Predict tags for transactions fetched from Plaid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list, _ := cmd.Flags().GetBool("accounts"); list {
				return listPlaidAccounts(cmd)
			}
			start, end, err := dateRange(cmd)
			if err != nil {
				return err
			}
			return runBatch(cmd, func(ctx context.Context) ([]model.Transaction, error) {
				fetcher, err := newPlaidFetcher()
				if err != nil {
					return nil, err
				}
				return fetcher.GetTransactions(ctx, start, end)
			})
		},
	}
	plaidCmd.Flags().String("start", "", "First day to fetch, YYYY-MM-DD (default: 30 days ago)")
	plaidCmd.Flags().String("end", "", "Last day to fetch, YYYY-MM-DD (default: today)")
	plaidCmd.Flags().Bool("accounts", false, "List the linked account IDs and exit")

	cmd.AddCommand(ofxCmd, plaidCmd)
	return cmd
}

func loadOFX(ctx context.Context, path string) ([]model.Transaction, error) {
	f, err := os.Open(config.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	defer func() { _ = f.Close() }()

	transactions, err := ofx.NewParser().ParseFile(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return transactions, nil
}

// newPlaidFetcher connects to Plaid. Tests replace it.
var newPlaidFetcher = func() (plaid.TransactionFetcher, error) {
	cfg, err := config.LoadPlaidConfig()
	if err != nil {
		return nil, common.NewUserError("set plaid.client_id, plaid.secret and plaid.access_token", err)
	}
	client, err := plaid.NewClient(*cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func listPlaidAccounts(cmd *cobra.Command) error {
	fetcher, err := newPlaidFetcher()
	if err != nil {
		return err
	}
	accounts, err := fetcher.GetAccounts(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(accounts) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No linked accounts"))
		return nil
	}
	for _, id := range accounts {
		fmt.Fprintln(out, id)
	}
	return nil
}

func dateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")

	end := time.Now()
	if endStr != "" {
		parsed, err := time.Parse(dateLayout, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid --end %q", common.ErrInvalidInput, endStr)
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -30)
	if startStr != "" {
		parsed, err := time.Parse(dateLayout, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid --start %q", common.ErrInvalidInput, startStr)
		}
		start = parsed
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: --start is after --end", common.ErrInvalidInput)
	}
	return start, end, nil
}

// batchOptions reads the batch flags shared by every source.
func batchOptions(cmd *cobra.Command, user string) batch.Options {
	opts := batch.DefaultOptions()
	opts.UserID = user

	includeCredits, _ := cmd.Flags().GetBool("include-credits")
	opts.SkipCredits = !includeCredits
	opts.ConfirmDecided, _ = cmd.Flags().GetBool("confirm-decided")

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = viper.GetInt("batch.workers")
	}
	if workers > 0 {
		opts.Workers = workers
	}

	return opts
}

// reviewFunc adapts an interactive reviewer to the batch runner.
func reviewFunc(r *cli.Reviewer) batch.ReviewFunc {
	return func(ctx context.Context, tx model.Transaction, p model.Prediction) (string, bool, error) {
		decision, err := r.Review(ctx, tx, p)
		if err != nil {
			return "", false, err
		}
		return decision.Tag, !decision.Skipped, nil
	}
}

// newReportWriter builds the --sheets exporter. Tests replace it.
var newReportWriter = func(ctx context.Context) (sheets.ReportWriter, error) {
	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, err
	}
	w, err := sheets.NewWriter(ctx, *cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up Google Sheets export: %w", err)
	}
	return w, nil
}

func runBatch(cmd *cobra.Command, load func(context.Context) ([]model.Transaction, error)) error {
	exportSheets, _ := cmd.Flags().GetBool("sheets")
	review, _ := cmd.Flags().GetBool("review")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	user, err := userID()
	if err != nil {
		return err
	}

	var writer sheets.ReportWriter
	if exportSheets {
		if writer, err = newReportWriter(cmd.Context()); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	interrupts := cli.NewInterruptHandler(out)
	ctx := interrupts.HandleInterrupts(cmd.Context(), true)

	transactions, err := load(ctx)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No transactions to tag"))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	e, err := initEngine(store)
	if err != nil {
		return err
	}

	opts := batchOptions(cmd, user)
	var reviewer *cli.Reviewer
	if review {
		reviewer = cli.NewReviewer(cmd.InOrStdin(), out, e.Catalog())
		opts.Review = reviewFunc(reviewer)
	}
	var bar *progressbar.ProgressBar
	if !noProgress && !review {
		bar = cli.NewProgressBar(cmd.ErrOrStderr(), batch.PayeeCount(transactions, opts.SkipCredits), "Predicting tags")
		opts.Progress = func() { _ = bar.Add(1) }
	}

	result, err := batch.NewRunner(e, store).Run(ctx, transactions, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		if interrupts.WasInterrupted() && errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	fmt.Fprintln(out, cli.RenderBatchSummary(result.Stats))
	if reviewer != nil {
		stats := reviewer.Stats()
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Reviewed %d: %d accepted, %d corrected, %d skipped",
			stats.Reviewed, stats.Accepted, stats.Corrected, stats.Skipped)))
	}

	if writer != nil {
		if err := writer.Write(ctx, result.Report(time.Now())); err != nil {
			return fmt.Errorf("failed to export report: %w", err)
		}
		fmt.Fprintln(out, cli.FormatSuccess("Report exported to Google Sheets"))
	}

	return nil
}
