package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Samael-fhts/admc/internal/directory"
)

// printAttributeValues writes the decoded values one per line. An absent
// attribute prints nothing, not a blank line.
func printAttributeValues(w io.Writer, attribute string, values []string) {
	for _, value := range values {
		fmt.Fprintln(w, directory.FormatValue(attribute, value))
	}
}

var getAttributeCmd = &cobra.Command{
	Use:   "get-attribute <dn> <attribute>",
	Short: "Print the first value of an entry's attribute",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !checkArgs(cmd, args, 2) {
			return nil
		}

		session, closer, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		dn, attribute := args[0], args[1]
		values := session.AttributeValues(cmd.Context(), dn, attribute)
		if len(values) > 1 {
			values = values[:1]
		}
		printAttributeValues(cmd.OutOrStdout(), attribute, values)
		return nil
	},
}

var getAttributeMultiCmd = &cobra.Command{
	Use:   "get-attribute-multi <dn> <attribute>",
	Short: "Print all values of an entry's attribute, one per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !checkArgs(cmd, args, 2) {
			return nil
		}

		session, closer, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		dn, attribute := args[0], args[1]
		printAttributeValues(cmd.OutOrStdout(), attribute, session.AttributeValues(cmd.Context(), dn, attribute))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getAttributeCmd, getAttributeMultiCmd)
}
