package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vivaro/vivaro/internal/pipeline"
)

var searchCmd = &cobra.Command{
	Use:   "search <community name>",
	Short: "Look up one community by name and print its access metrics",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")

		env, err := initAnalysis(cmd.Context(), "analyze", false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, ok, err := pipeline.Lookup(env.Holder.Current(), name)
		if !ok {
			return eris.Errorf("search: community %q not found", name)
		}
		if err != nil {
			return eris.Wrapf(err, "search: %s", name)
		}
		return printJSON(cmd.OutOrStdout(), res.View())
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
