package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-tagger/internal/cli"
	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/normalize"
)

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and edit remembered payees",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List remembered payees",
		Args:  cobra.NoArgs,
		RunE:  runMemoryList,
	}
	list.Flags().Bool("json", false, "Print records as JSON")

	forget := &cobra.Command{
		Use:   "forget <payee>",
		Short: "Forget every tag remembered for a payee",
		Args:  cobra.ExactArgs(1),
		RunE:  runMemoryForget,
	}

	cmd.AddCommand(list, forget)
	return cmd
}

func runMemoryList(cmd *cobra.Command, _ []string) error {
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

	records, err := store.GetUserPredictions(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load memory: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	}

	fmt.Fprintln(out, cli.RenderMemory(records))
	return nil
}

func runMemoryForget(cmd *cobra.Command, args []string) error {
	user, err := userID()
	if err != nil {
		return err
	}

	payee := normalize.Payee(args[0])
	if payee == "" {
		return common.NewUserError("payee has no letters or digits", common.ErrInvalidInput)
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	deleted, err := store.DeleteUserTag(ctx, user, payee)
	if err != nil {
		return fmt.Errorf("failed to forget payee: %w", err)
	}

	out := cmd.OutOrStdout()
	if deleted == 0 {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Nothing remembered for %s", payee)))
		return nil
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Forgot %d tag(s) for %s", deleted, payee)))
	return nil
}
