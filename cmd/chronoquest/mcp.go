package main

import (
	"context"
	"errors"

	"github.com/chronoquest/chronoquest"
	cqmcp "github.com/chronoquest/chronoquest/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve quest tools to an agent over MCP",
	Long: `Start a Model Context Protocol server over stdio, exposing today's
quests, completion, counters, sync, status and story as tools.

Sign in with ` + "`chronoquest login`" + ` first, or pass --token. Example agent
configuration:

  {
    "mcpServers": {
      "chronoquest": {
        "command": "chronoquest",
        "args": ["mcp"],
        "env": {
          "CHRONOQUEST_URL": "https://your-project.example.co",
          "CHRONOQUEST_ANON_KEY": "..."
        }
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	client, err := chronoquest.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	// Tools report "not signed in" themselves, so a missing login is not fatal.
	if _, err := client.Open(cmd.Context()); err != nil &&
		!errors.Is(err, chronoquest.ErrNotSignedIn) && !errors.Is(err, chronoquest.ErrTokenExpired) {
		return err
	}

	// Pick up work queued by other processes while the server is up.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go watchStore(ctx, client)

	return cqmcp.NewServer(client).Run()
}

// watchStore feeds local store changes to the current session until ctx is
// done. A watcher failure is logged; the server keeps running without it.
func watchStore(ctx context.Context, client *chronoquest.Client) {
	err := client.Watch(ctx, func() {
		if sess := client.Session(); sess != nil {
			sess.HandleStoreChange()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		client.Logger().Error("mcp: store watch stopped", "path", client.StorePath(), "err", err)
	}
}
