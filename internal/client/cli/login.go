package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tallybook/tallybook/internal/client/config"
	"github.com/tallybook/tallybook/internal/client/remote"
)

func newLoginCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the sync server and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "username: ")
				r := bufio.NewReader(cmd.InOrStdin())
				line, err := r.ReadString('\n')
				if err != nil {
					return err
				}
				username = strings.TrimSpace(line)
			}

			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			token, err := remote.Login(cmd.Context(), cfg.ServerURL, username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := cfg.SaveToken(token); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	return cmd
}

// readPassword hides input when stdin is a terminal; in pipes and tests it
// falls back to a plain line read.
func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "password: ")
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	r := bufio.NewReader(cmd.InOrStdin())
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
