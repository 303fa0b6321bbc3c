package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientsync "github.com/tallybook/tallybook/internal/client/sync"
)

func newPushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Write the local dataset to the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Sync.Push(cmd.Context(), false)
			if err != nil {
				return reportGuard(err)
			}
			if res.Conflicted {
				fmt.Fprintln(cmd.OutOrStdout(), "push rejected on versions; server records merged locally, review conflicted entries")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d records\n", res.Records)
			return nil
		},
	}
}

func newPullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace local state with the server dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Sync.Pull(cmd.Context())
			if err != nil {
				return reportGuard(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %d records\n", res.Records)
			return nil
		},
	}
}

func newSyncCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push once, or watch for local changes and push in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if !watch {
				res, err := app.Sync.Push(cmd.Context(), false)
				if err != nil {
					return reportGuard(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced %d records\n", res.Records)
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "watching for changes, ctrl-c to stop")
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-stop:
			case <-cmd.Context().Done():
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "stay running and auto-push after local changes")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and staleness advice",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ds := app.Ledger.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "records: %d (live transactions: %d)\n",
				ds.RecordCount(), len(ds.LiveTransactions()))

			if last := app.Sync.LastSuccess(); last.IsZero() {
				fmt.Fprintln(cmd.OutOrStdout(), "last sync: never (this session)")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "last sync: %s\n", last.Format(time.RFC3339))
			}

			if msg, ok := app.Sync.StaleAdvice(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "advice: %s\n", msg)
			}
			return nil
		},
	}
}

// reportGuard rewords guard rejections; they are expected outcomes, not
// failures.
func reportGuard(err error) error {
	switch {
	case errors.Is(err, clientsync.ErrThrottled):
		return errors.New("synced moments ago, wait a few seconds")
	case errors.Is(err, clientsync.ErrSyncInProgress):
		return errors.New("a sync is already running")
	default:
		return err
	}
}
