package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/infodancer/session"
	"github.com/infodancer/session/config"
)

var loginTimeout time.Duration

var loginCmd = &cobra.Command{
	Use:   "login <id>",
	Short: "Resolve the session of a user",
	Long: `Log in as id (prompts for password), resolve the session through the
configured factory chain and print its attributes.

A cached session is reused when the configured validators accept it.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var foldersCmd = &cobra.Command{
	Use:   "folders <id>",
	Short: "List the groupware folders of a user",
	Long: `Log in as id (prompts for password), resolve the session and open its
groupware storage to list the folders.`,
	Args: cobra.ExactArgs(1),
	RunE: runFolders,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, foldersCmd} {
		c.Flags().DurationVar(&loginTimeout, "timeout", 30*time.Second, "overall timeout")
	}
}

// withSession logs in as id and runs fn with the resolved session.
func withSession(id string, fn func(ctx context.Context, s session.Session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	st, err := config.Open(cfg, session.StaticAuth{ID: id, Password: password}, newLogger(cfg), nil)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()

	s, err := st.Factory.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return fn(ctx, s)
}

func runLogin(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(_ context.Context, s session.Session) error {
		attrs, err := s.Attributes()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		rows := [][2]string{
			{"ID", s.ID()},
			{"AUTH AS", s.Credentials().ID},
			{"MAIL", attrs.Mail},
			{"UID", attrs.UID},
			{"NAME", attrs.Name},
			{"IMAP SERVER", attrs.ImapServer},
			{"FREEBUSY SERVER", attrs.FreebusyServer},
			{"RESOLVED", attrs.ResolvedAt.Format(time.RFC3339)},
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", r[0], r[1]); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

func runFolders(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, s session.Session) error {
		h, err := s.Storage()
		if err != nil {
			return err
		}
		storage, err := h.Open(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = storage.Close() }()

		folders, err := storage.Folders(ctx)
		if err != nil {
			return err
		}
		for _, f := range folders {
			fmt.Println(f)
		}
		return nil
	})
}
