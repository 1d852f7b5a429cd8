package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/ashureev/bot-console/internal/identity"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [username]",
		Short: "read a password from stdin and print its bcrypt hash",
		Long: `Read a password from the first line of stdin and print a bcrypt hash for
ADMIN_CREDENTIALS. With a username the output is a ready "user:hash" entry.`,
		Example: `  $ echo -n 's3cret' | consolectl hash-password alice`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password from stdin: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")

			hash, err := identity.HashPassword(password)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				username := strings.TrimSpace(args[0])
				if _, err := identity.DeriveUserID(username); err != nil {
					return err
				}
				if strings.ContainsAny(username, ":,") {
					return fmt.Errorf("username cannot contain ':' or ','")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", username, hash)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
