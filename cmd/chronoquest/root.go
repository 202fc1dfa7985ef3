package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	cfgProfile string
	cfgURL     string
	cfgAnonKey string
	cfgToken   string
	cfgDBPath  string
	cfgOffline bool
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "chronoquest",
	Short: "ChronoQuest - turn daily habits into quests",
	Long: `ChronoQuest is a habit tracker played as an RPG.

Complete quests to earn XP and coins, level up your stats, and unlock
story chapters. Everything you do offline is saved and synced later.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.chronoquest/config.yaml)")
	pf.StringVar(&cfgProfile, "profile", "", "Local profile to use (env: CHRONOQUEST_PROFILE)")
	pf.StringVar(&cfgURL, "url", "", "Backend project URL (env: CHRONOQUEST_URL)")
	pf.StringVar(&cfgAnonKey, "anon-key", "", "Backend public API key (env: CHRONOQUEST_ANON_KEY)")
	pf.StringVar(&cfgToken, "token", "", "Access token, overriding the stored login")
	pf.StringVar(&cfgDBPath, "db-path", "", "Path to the local database")
	pf.BoolVar(&cfgOffline, "offline", false, "Start without network access; writes are queued")
	pf.BoolVar(&outputJSON, "json", false, "Output JSON")
}

// loadConfig layers the config file, the environment and the flags.
func loadConfig(stderr io.Writer) (chronoquest.Config, error) {
	cfg, err := chronoquest.LoadConfig(cfgFile, chronoquest.Config{
		BackendURL:  cfgURL,
		AnonKey:     cfgAnonKey,
		AccessToken: cfgToken,
		Profile:     cfgProfile,
		LocalPath:   cfgDBPath,
		Offline:     cfgOffline,
	})
	if err != nil {
		return chronoquest.Config{}, err
	}
	if !outputJSON {
		cfg.Notifier = eventPrinter{w: stderr}
	}
	return cfg, nil
}

// openClient builds the client for one command invocation.
func openClient(cmd *cobra.Command) (*chronoquest.Client, error) {
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	client, err := chronoquest.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}

// withSession opens the signed-in session, runs fn, and waits for any
// background sync before closing.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, sess *chronoquest.Session) error) error {
	return withClientSession(cmd, func(ctx context.Context, _ *chronoquest.Client, sess *chronoquest.Session) error {
		return fn(ctx, sess)
	})
}

func withClientSession(cmd *cobra.Command, fn func(ctx context.Context, client *chronoquest.Client, sess *chronoquest.Session) error) error {
	client, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sess, err := client.Open(ctx)
	if errors.Is(err, chronoquest.ErrNotSignedIn) {
		return fmt.Errorf("%w: run `chronoquest login` first", err)
	}
	if errors.Is(err, chronoquest.ErrTokenExpired) {
		return fmt.Errorf("%w: run `chronoquest login` again", err)
	}
	if err != nil {
		return err
	}

	if err := sess.Refresh(ctx); err != nil {
		printWarning(cmd.ErrOrStderr(), "refresh failed: %v", err)
	}
	return fn(ctx, client, sess)
}
