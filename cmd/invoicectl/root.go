package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnTengye/invoicedesk/apiclient"
	"github.com/AnTengye/invoicedesk/gate"
	"github.com/AnTengye/invoicedesk/pkg/logger"
	"github.com/AnTengye/invoicedesk/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	errLoginRequired = errors.New("not logged in")
	errNotPermitted  = errors.New("not permitted")
)

// cli is the state shared by every command of one invocation
type cli struct {
	v      *viper.Viper
	out    io.Writer
	client *apiclient.Client
	sess   *session.Session
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &cli{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Upload invoices and read reports from an invoicedesk server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080", "server base URL")
	flags.String("state", defaultStatePath(), "file that keeps the login between runs")
	flags.Bool("demo", false, "show sample data when the server cannot answer")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Duration("timeout", 10*time.Second, "request timeout")

	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix("INVOICECTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.uploadCmd(),
		a.uploadsCmd(),
		a.invoicesCmd(),
		a.dashboardCmd(),
		a.reportsCmd(),
		a.categoriesCmd(),
	)
	return root
}

func (a *cli) setup() error {
	logger.Init(&logger.Config{Level: a.v.GetString("log-level"), Format: "text"})

	statePath := a.v.GetString("state")
	if err := os.MkdirAll(filepath.Dir(statePath), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	store, err := session.OpenFileStore(statePath)
	if err != nil {
		return err
	}

	a.client = apiclient.New(apiclient.Options{
		BaseURL:   a.v.GetString("server"),
		Timeout:   a.v.GetDuration("timeout"),
		CacheSize: 64,
		CacheTTL:  30 * time.Second,
		Demo:      a.v.GetBool("demo"),
	})
	a.sess = session.New(store, a.client)
	if err := a.sess.Restore(); err != nil {
		return err
	}
	a.client.SetTokenStore(a.sess)
	return nil
}

// require runs the route gate for screen before any request is sent, and
// renews the token when it is about to expire
func (a *cli) require(ctx context.Context, screen gate.Screen) error {
	user := a.sess.User()
	if !a.sess.IsAuthenticated() {
		user = nil
	}

	d := screen.Check(user)
	switch d.Outcome {
	case gate.RedirectLogin:
		return fmt.Errorf("%w: run `invoicectl login` to open %s", errLoginRequired, d.From)
	case gate.RedirectUnauthorized:
		return fmt.Errorf("%w: %s needs role %s, you are %s",
			errNotPermitted, screen.Name, joinRoles(d.RequiredRoles), d.UserRole)
	}

	if a.sess.ShouldRefresh() {
		resp, err := a.client.Refresh(ctx)
		if err != nil {
			slog.Warn("token refresh failed", "error", err)
			return a.explain(err)
		}
		if err := a.sess.Save(resp.User, resp.Token); err != nil {
			return err
		}
	}
	return nil
}

// explain turns client errors into messages that say what to do next
func (a *cli) explain(err error) error {
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		return fmt.Errorf("%w: the session expired, run `invoicectl login`", errLoginRequired)
	case errors.Is(err, apiclient.ErrForbidden):
		return fmt.Errorf("%w: %v", errNotPermitted, err)
	}
	return err
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "invoicectl", "session.msgpack")
}
