package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <dn>",
	Short: "Print the DNs of an entry's direct children, one per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !checkArgs(cmd, args, 1) {
			return nil
		}

		session, closer, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		for _, child := range session.Children(cmd.Context(), args[0]) {
			fmt.Fprintln(cmd.OutOrStdout(), child)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
