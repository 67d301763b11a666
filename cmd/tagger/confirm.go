package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-tagger/internal/cli"
	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/config"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
)

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <payee> <tag>",
		Short: "Remember the tag for a payee",
		Long: `Record that a payee belongs to a tag. Future predictions for the same
or a similar payee use this memory first.

Examples:
  tagger confirm "Kedai Pak Ali" "Food & Drinks"
  tagger confirm "SHELL BANGSAR" Fuel --weight 3`,
		Args: cobra.ExactArgs(2),
		RunE: runConfirm,
	}

	cmd.Flags().Int("weight", 1, "How many confirmations to record")

	return cmd
}

func runConfirm(cmd *cobra.Command, args []string) error {
	weight, _ := cmd.Flags().GetInt("weight")

	user, err := userID()
	if err != nil {
		return err
	}

	c, err := config.LoadCatalog()
	if err != nil {
		return err
	}

	confirmation := model.Confirmation{UserID: user, Payee: args[0], Tag: args[1], Weight: weight}
	if err := confirmation.Validate(); err != nil {
		return common.NewUserError("invalid confirmation", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}

	tag, ok := c.Tag(confirmation.Tag)
	if !ok {
		return common.NewUserError("run `tagger catalog show` to list tags", fmt.Errorf("%w: %s", common.ErrUnknownTag, confirmation.Tag))
	}
	if normalize.Payee(confirmation.Payee) == "" {
		return common.NewUserError("payee has no letters or digits", common.ErrInvalidInput)
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveUserTag(ctx, user, confirmation.Payee, tag.Name, weight); err != nil {
		return fmt.Errorf("failed to save confirmation: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s will be tagged %s", normalize.Payee(confirmation.Payee), tag.Name)))
	return nil
}
