package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/infodancer/session/passwd"
)

var (
	addName     string
	addMail     string
	addUID      string
	addImap     string
	addFreebusy string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage passwd directory users",
	Long: `Manage users in the passwd files of a domains directory.

Examples:
  sessionctl user add alice@example.com --name "Alice Example"
  sessionctl user list example.com
  sessionctl user passwd alice@example.com
  sessionctl user del alice@example.com`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <user@domain>",
	Short: "Add a user (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userDelCmd = &cobra.Command{
	Use:     "del <user@domain>",
	Aliases: []string{"delete"},
	Short:   "Remove a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDel,
}

var userListCmd = &cobra.Command{
	Use:     "list <domain>",
	Aliases: []string{"ls"},
	Short:   "List the users of a domain",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserList,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <user@domain>",
	Short: "Change a user's password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserPasswd,
}

func init() {
	userAddCmd.Flags().StringVar(&addName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&addMail, "mail", "", "mail address (default: user@domain)")
	userAddCmd.Flags().StringVar(&addUID, "uid", "", "unique id (default: user@domain)")
	userAddCmd.Flags().StringVar(&addImap, "imap-server", "", "IMAP server (default: from domain config)")
	userAddCmd.Flags().StringVar(&addFreebusy, "freebusy-server", "", "free/busy server (default: from domain config)")

	userCmd.AddCommand(userAddCmd, userDelCmd, userListCmd, userPasswdCmd)
}

// resolveDomains returns --domains, or the directory backend of a passwd configuration.
func resolveDomains() (string, error) {
	if domainsPath != "" {
		return domainsPath, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Directory.Type != "passwd" {
		return "", fmt.Errorf("--domains path required (directory type is %q)", cfg.Directory.Type)
	}
	return cfg.Directory.Backend, nil
}

// parseAddress splits user@domain and returns the username and the passwd file of the domain.
func parseAddress(address string) (username, passwdPath string, err error) {
	base, err := resolveDomains()
	if err != nil {
		return "", "", err
	}
	username, domainName := passwd.SplitUsername(address)
	if username == "" || domainName == "" {
		return "", "", fmt.Errorf("invalid address %q: expected user@domain", address)
	}
	return username, passwd.PasswdPath(base, domainName), nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username, path, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	password, err := promptNewPassword()
	if err != nil {
		return err
	}

	e := passwd.Entry{
		Username:       username,
		UID:            addUID,
		Mail:           addMail,
		Name:           addName,
		ImapServer:     addImap,
		FreebusyServer: addFreebusy,
	}
	if err := passwd.AddUser(path, e, password); err != nil {
		return err
	}
	fmt.Printf("Added user %q\n", username)
	return nil
}

func runUserDel(cmd *cobra.Command, args []string) error {
	username, path, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	if err := passwd.DeleteUser(path, username); err != nil {
		return err
	}
	fmt.Printf("Deleted user %q\n", username)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	username, path, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	password, err := promptNewPassword()
	if err != nil {
		return err
	}
	if err := passwd.SetPassword(path, username, password); err != nil {
		return err
	}
	fmt.Printf("Changed password of %q\n", username)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	base, err := resolveDomains()
	if err != nil {
		return err
	}
	users, err := passwd.ListUsers(passwd.PasswdPath(base, args[0]))
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Println("no users")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "USERNAME\tNAME\tMAIL\tIMAP SERVER"); err != nil {
		return err
	}
	for _, u := range users {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Username, u.Name, u.Mail, u.ImapServer); err != nil {
			return err
		}
	}
	return w.Flush()
}
