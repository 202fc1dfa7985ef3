package main

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the access token",
	Long: `Sign in with email and password. The access token is stored in the
local profile database and used by every later command.

On a terminal, missing credentials are prompted for.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Long:  `Forget the stored access token. Operations saved offline stay queued and sync after the next login.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		if err := client.Logout(); err != nil {
			return err
		}
		if !outputJSON {
			printSuccess(cmd.OutOrStdout(), "Signed out")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (env: CHRONOQUEST_PASSWORD)")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, password, err := loginCredentials()
	if err != nil {
		return err
	}

	client, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	var sess *chronoquest.Session
	err = runWithSpinner(cmd.ErrOrStderr(), "Signing in", func() error {
		var serr error
		sess, serr = client.SignIn(cmd.Context(), email, password)
		return serr
	})
	if errors.Is(err, chronoquest.ErrOffline) {
		return errors.New("cannot sign in offline: set --url or CHRONOQUEST_URL")
	}
	if err != nil {
		return err
	}

	profile, err := sess.EnsureProfile(cmd.Context())
	if err != nil {
		printWarning(cmd.ErrOrStderr(), "could not load profile: %v", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]any{"user_id": sess.UserID(), "profile": profile})
	}
	name := email
	if profile != nil {
		name = profile.DisplayName
	}
	printSuccess(cmd.OutOrStdout(), "Signed in as %s", name)
	return nil
}

// loginCredentials takes the flags, the environment, and on a terminal
// prompts for whatever is still missing.
func loginCredentials() (email, password string, err error) {
	email = strings.TrimSpace(loginEmail)
	password = loginPassword
	if password == "" {
		password = os.Getenv("CHRONOQUEST_PASSWORD")
	}
	if email != "" && password != "" {
		return email, password, nil
	}
	if !isTTY() {
		return "", "", errors.New("--email and --password are required when not running in a terminal")
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Email").
			Value(&email).
			Validate(func(s string) error {
				if !strings.Contains(s, "@") {
					return errors.New("enter an email address")
				}
				return nil
			}),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password),
	))
	if err := form.Run(); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(email), password, nil
}
