package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallybook/tallybook/internal/models"
)

func newRecurCommand() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "recur",
		Short: "Materialize due occurrences of recurring transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			at := time.Now()
			if asOf != "" {
				at, err = models.ParseDate(asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of date: %w", err)
				}
			}

			res, err := app.Ledger.ExpandRecurring(cmd.Context(), at)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %d transactions from %d rules\n",
				len(res.NewTransactions), len(res.AdvancedRules))
			for _, s := range res.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped rule %s: %s\n", s.RuleID, s.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "expand up to this date (YYYY-MM-DD, default today)")
	return cmd
}
