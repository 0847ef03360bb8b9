package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/platform/session"
)

func loginCmd() *cobra.Command {
	var username string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("--username required")
			}
			password := os.Getenv("EVALCTL_PASSWORD")
			if passwordStdin || password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			s, err := client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if s.RefreshToken == "" {
				return fmt.Errorf("login response carried no refresh token")
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(cmd.Context(), s.User, s.RefreshToken); err != nil {
				return err
			}
			user, err := auth.UserFromToken(s.AccessToken)
			if err != nil {
				return fmt.Errorf("access token: %w", err)
			}
			fillUser(&user, s.User)
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", user.Name, user.Role.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			_, refresh, err := store.Load(cmd.Context())
			if errors.Is(err, session.ErrNoSession) {
				return nil
			}
			if err != nil {
				return err
			}
			if client, err := newClient(); err == nil {
				if err := client.Logout(context.WithoutCancel(cmd.Context()), refresh); err != nil {
					fmt.Fprintln(os.Stderr, "warning: server logout failed:", err)
				}
			}
			return store.Clear(cmd.Context())
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and what they may do",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				view := map[string]any{
					"userId":       c.User.UserID,
					"employeeId":   c.User.EmployeeID,
					"name":         c.User.Name,
					"role":         c.User.Role.DisplayName(),
					"capabilities": c.User.Capabilities().List(),
				}
				return render(view, func(tw table.Writer) {
					tw.AppendRow(table.Row{"User", c.User.UserID})
					tw.AppendRow(table.Row{"Employee", c.User.EmployeeID})
					tw.AppendRow(table.Row{"Name", c.User.Name})
					tw.AppendRow(table.Row{"Role", c.User.Role.DisplayName()})
					tw.AppendRow(table.Row{"Capabilities", strings.Join(c.User.Capabilities().List(), "\n")})
				})
			})
		},
	}
}
