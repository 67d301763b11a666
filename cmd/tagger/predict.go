package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-tagger/internal/cli"
	"github.com/Veraticus/spice-tagger/internal/engine"
	"github.com/Veraticus/spice-tagger/internal/model"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict <payee>",
		Short: "Predict the tag for one payee",
		Long: `Predict a spending tag for a single payee using your tag memory,
the model ensemble and keyword rules, in that order.

Examples:
  tagger predict "GRAB MALAYSIA"
  tagger predict "Tesco Extra Ampang" --explain
  tagger predict "Kedai Pak Ali" --user alice --json`,
		Args: cobra.ExactArgs(1),
		RunE: runPredict,
	}

	cmd.Flags().Bool("explain", false, "Show how each stage voted")
	cmd.Flags().Bool("json", false, "Print the prediction as JSON")

	return cmd
}

type predictOutput struct {
	Trace      *engine.Trace    `json:"trace,omitempty"`
	Payee      string           `json:"payee"`
	Prediction model.Prediction `json:"prediction"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	explain, _ := cmd.Flags().GetBool("explain")
	asJSON, _ := cmd.Flags().GetBool("json")

	user, err := userID()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	e, err := initEngine(store)
	if err != nil {
		return err
	}

	payee := args[0]
	prediction, trace := e.Explain(ctx, user, payee)

	out := cmd.OutOrStdout()
	if asJSON {
		result := predictOutput{Payee: payee, Prediction: prediction}
		if explain {
			result.Trace = &trace
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(result)
	}

	fmt.Fprintln(out, cli.RenderPrediction(payee, prediction))
	if explain {
		fmt.Fprintln(out, cli.RenderTrace(trace))
	}
	return nil
}
