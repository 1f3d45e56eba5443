// printwatch - 3D printer dashboard backend
//
// printwatch subscribes to the printer's MQTT topics, keeps the latest message
// per topic in a persistent store and serves it over a REST API and WebSocket.
// Operators can cancel prints and edit component state from the dashboard;
// those commands are published back to the broker.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/nerrad567/printwatch/internal/auth"
	"github.com/nerrad567/printwatch/internal/infrastructure/config"
	"github.com/nerrad567/printwatch/internal/topic"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newApp builds the command tree. Output of the match and token commands
// goes to out.
func newApp(out io.Writer) *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "printwatch",
		Usage:   "3D printer dashboard backend",
		Version: fmt.Sprintf("%s (%s) %s", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("PRINTWATCH_CONFIG"),
				Value:       config.DefaultPath,
				Destination: &configPath,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() > 0 {
				return fmt.Errorf("unknown command %q. Run 'printwatch --help' for usage", c.Args().First())
			}
			return run(ctx, configPath)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the dashboard backend (default)",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return run(ctx, configPath)
				},
			},
			matchCmd(out),
			tokenCmd(out, &configPath),
		},
	}
}

// matchCmd reports whether an MQTT topic filter matches a topic.
func matchCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "match",
		Usage:     "Check whether a topic filter matches a topic",
		UsageText: "printwatch match <filter> <topic>",
		Description: `Prints true or false.

Examples:
  printwatch match 'printer/+/bracket' printer/components/bracket
  printwatch match 'printer/#' printer`,
		Action: func(_ context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("expected <filter> <topic>, got %d arguments", c.Args().Len())
			}
			filter, t := c.Args().Get(0), c.Args().Get(1)
			if !topic.ValidFilter(filter) {
				return fmt.Errorf("invalid topic filter %q", filter)
			}
			_, err := fmt.Fprintln(out, topic.Matches(filter, t))
			return err
		},
	}
}

// tokenCmd mints an API bearer token signed with security.jwt.secret.
func tokenCmd(out io.Writer, configPath *string) *cli.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	return &cli.Command{
		Name:  "token",
		Usage: "Mint an API bearer token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "subject",
				Usage:       "who the token is issued to",
				Required:    true,
				Destination: &subject,
			},
			&cli.StringFlag{
				Name:        "role",
				Usage:       "viewer or operator",
				Value:       string(auth.RoleViewer),
				Destination: &role,
			},
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "token lifetime (default security.jwt.access_token_ttl)",
				Destination: &ttl,
			},
		},
		Action: func(_ context.Context, _ *cli.Command) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if !cfg.AuthEnabled() {
				return fmt.Errorf("security.jwt.secret is not set; authentication is disabled")
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}

			token, err := auth.GenerateToken(auth.TokenRequest{
				Subject: subject,
				Role:    auth.Role(role),
				Issuer:  cfg.Security.JWT.Issuer,
				TTL:     ttl,
			}, cfg.Security.JWT.Secret)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}
}
