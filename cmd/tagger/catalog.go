package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/cli"
	"github.com/Veraticus/spice-tagger/internal/config"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show or check the tag catalog",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the active tag catalog",
		Args:  cobra.NoArgs,
		RunE:  runCatalogShow,
	}
	show.Flags().Bool("yaml", false, "Print the catalog as an editable YAML definition")

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a catalog file without using it",
		Args:  cobra.ExactArgs(1),
		RunE:  runCatalogValidate,
	}

	cmd.AddCommand(show, validate)
	return cmd
}

func runCatalogShow(cmd *cobra.Command, _ []string) error {
	asYAML, _ := cmd.Flags().GetBool("yaml")

	c, err := config.LoadCatalog()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(c.Definition())
	}

	fmt.Fprintln(out, renderCatalog(c))
	return nil
}

func renderCatalog(c *catalog.Catalog) string {
	var b strings.Builder
	fallback, hasFallback := c.Fallback()

	for _, tag := range c.Tags() {
		name := cli.BoldStyle.Render(tag.Name)
		if hasFallback && tag.Name == fallback {
			name += cli.SubtleStyle.Render(" (fallback)")
		}
		fmt.Fprintf(&b, "%s %s\n", cli.TagIcon, name)
		if len(tag.Keywords) > 0 {
			fmt.Fprintf(&b, "   %s\n", cli.SubtleStyle.Render(strings.Join(tag.Keywords, ", ")))
		}
	}

	return cli.RenderBox(fmt.Sprintf("Catalog (%d tags)", c.Len()), strings.TrimRight(b.String(), "\n"))
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	path := config.ExpandPath(args[0])

	c, err := catalog.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s is valid: %d tags", args[0], c.Len())))
	return nil
}
