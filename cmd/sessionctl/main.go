// Command sessionctl manages passwd directory users and resolves groupware
// sessions from a session service configuration.
//
// Usage:
//
//	sessionctl user add    <user@domain>   add user (prompts for password)
//	sessionctl user del    <user@domain>   remove user
//	sessionctl user list   <domain>        list users
//	sessionctl user passwd <user@domain>   change password
//	sessionctl login   <id>                resolve the session of id
//	sessionctl folders <id>                list the groupware folders of id
//
// The domains path can also be set via the GROUPWARE_DOMAINS_PATH environment variable.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/infodancer/session/config"
)

var (
	configPath  string
	domainsPath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "sessionctl",
	Short:         "Groupware session administration",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/groupware/session.toml", "path to session configuration file")
	rootCmd.PersistentFlags().StringVar(&domainsPath, "domains", os.Getenv("GROUPWARE_DOMAINS_PATH"), "path to passwd domains directory (default: directory backend from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log factory activity to stderr")

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(foldersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config, falling back to defaults when the file does not exist.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(configPath)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.Log.SlogLevel()
	if !verbose {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func promptNewPassword() (string, error) {
	password, err := promptPassword("Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}
