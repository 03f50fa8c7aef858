// Package cli implements the territoryctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mapslot/territory-engine/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds global CLI flags.
type RootOptions struct {
	ServerAddr string
	TenantID   string
	Output     string
	Timeout    time.Duration
}

// CLIContext carries the initialized API client through the command tree.
type CLIContext struct {
	Client  *client.Client
	Output  string
	Timeout time.Duration
}

type cliContextKey struct{}

// NewRootCommand creates the root cobra command with all global flags and
// subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "territoryctl",
		Short:   "territoryctl manages territories and slot sponsorships",
		Long:    "territoryctl is the command-line client for the territory engine.\nIt registers territories, previews slot availability, reserves the\nremainder of a slot, and manages the resulting sponsorships.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ServerAddr, "server", "http://localhost:8080", "API server address")
	pf.StringVar(&opts.TenantID, "tenant", "", "tenant ID sent with every request")
	pf.StringVarP(&opts.Output, "output", "o", "text", "output format (text, json)")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")

	cmd.AddCommand(
		newTerritoryCommand(),
		newPreviewCommand(),
		newReserveCommand(),
		newSponsorshipCommand(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	if opts.TenantID == "" {
		opts.TenantID = os.Getenv("TERRITORY_TENANT")
	}
	if opts.TenantID == "" {
		return fmt.Errorf("a tenant ID is required; pass --tenant or set TERRITORY_TENANT")
	}
	if addr := os.Getenv("TERRITORY_SERVER"); addr != "" && !cmd.Flags().Changed("server") {
		opts.ServerAddr = addr
	}

	cliCtx := &CLIContext{
		Client:  client.New(opts.ServerAddr, opts.TenantID),
		Output:  opts.Output,
		Timeout: opts.Timeout,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// GetCLIContext extracts the CLIContext installed by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cliCtx, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, fmt.Errorf("CLI context not initialized")
	}
	return cliCtx, nil
}

func (c *CLIContext) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.Timeout)
}

// printResult renders v as indented JSON when --output=json, otherwise it
// calls text to produce the human-readable form.
func printResult(w io.Writer, output string, v any, text func(io.Writer)) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
