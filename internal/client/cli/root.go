package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the tallybook command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tallybook",
		Short:         "Expense tracker with versioned multi-device sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newLoginCommand())
	cmd.AddCommand(newPushCommand())
	cmd.AddCommand(newPullCommand())
	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newRecurCommand())
	cmd.AddCommand(newStatusCommand())

	return cmd
}
