package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnTengye/invoicedesk/gate"
	"github.com/AnTengye/invoicedesk/session"
	"github.com/spf13/cobra"
)

func (a *cli) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := a.v.GetString("password")
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			user, err := a.sess.Login(cmd.Context(), args[0], password)
			if errors.Is(err, session.ErrInvalidCredentials) {
				return errors.New("invalid email or password")
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", user.Name, user.Role)
			for _, s := range gate.Screens() {
				if s.Check(user).Outcome == gate.Allow {
					fmt.Fprintf(a.out, "  can open %s\n", s.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("password", "", "password (read from stdin when empty)")
	_ = a.v.BindPFlag("password", cmd.Flags().Lookup("password"))
	return cmd
}

func (a *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sess.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and what they may do",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require(cmd.Context(), gate.ScreenDashboard); err != nil {
				return err
			}
			user, err := a.client.Verify(cmd.Context())
			if err != nil {
				return a.explain(err)
			}

			perms := gate.PermissionsFor(user.Role)
			tw := newTable(a.out, "FIELD", "VALUE")
			row(tw, "id", user.ID)
			row(tw, "email", user.Email)
			row(tw, "name", user.Name)
			row(tw, "role", user.Role)
			row(tw, "department", orDash(user.Department))
			row(tw, "session left", a.sess.TimeLeft().Round(time.Second))
			row(tw, "upload invoices", perms.CanUploadInvoices)
			row(tw, "view all invoices", perms.CanViewAllInvoices)
			row(tw, "view reports", perms.CanViewReports)
			row(tw, "manage settings", perms.CanManageSettings)
			return tw.Flush()
		},
	}
}
