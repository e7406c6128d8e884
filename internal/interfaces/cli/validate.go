package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a rate plan file",
		Long:  "Parse a rate plan file and run the same checks the server applies when the plan is created.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := LoadPlan(planPath)
			if err != nil {
				return fmt.Errorf("%s: %w", planPath, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPlanSummary(plan))
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "Rate plan YAML file")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}
