package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/epgmerge/internal/config"
	"github.com/snapetech/epgmerge/internal/feed"
	"github.com/snapetech/epgmerge/internal/health"
	"github.com/snapetech/epgmerge/internal/httpclient"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the configured feeds (or a running server) answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if server != "" {
				if err := health.CheckEndpoints(cmd.Context(), server); err != nil {
					return fmt.Errorf("server %s: %w", server, err)
				}
				fmt.Fprintf(out, "server %s: ok\n", server)
				return nil
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			primary := cfg.PrimaryURL
			if cfg.PrimaryKind == config.KindHTML {
				primary = feed.DayURL(primary, time.Now().In(loc))
			}
			client := httpclient.WithTimeout(cfg.FetchTimeout)
			if err := health.CheckSource(cmd.Context(), client, primary); err != nil {
				return fmt.Errorf("primary: %w", err)
			}
			fmt.Fprintln(out, "primary: ok")
			if cfg.SecondaryURL == "" {
				fmt.Fprintln(out, "secondary: not configured")
				return nil
			}
			// Secondary failures are reported, not fatal.
			if err := health.CheckSource(cmd.Context(), client, cfg.SecondaryURL); err != nil {
				fmt.Fprintf(out, "secondary: %v\n", err)
				return nil
			}
			fmt.Fprintln(out, "secondary: ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Base URL of a running epg-merge serve to check instead of the feeds")
	return cmd
}
