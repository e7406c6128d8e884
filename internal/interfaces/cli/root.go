// Package cli implements billingctl, an offline tool for checking rate plan
// files and pricing usage against them.
package cli

import "github.com/spf13/cobra"

var version = "dev"

// NewRootCmd returns the billingctl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "Work with netbill rate plans offline",
		Long:          "billingctl validates rate plan files and quotes usage samples against them without a running server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newQuoteCmd())
	cmd.AddCommand(newValidateCmd())
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
