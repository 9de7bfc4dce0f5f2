package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/epgmerge/internal/config"
)

// feedFlags are the config overrides shared by merge, serve and report.
type feedFlags struct {
	primary   string
	kind      string
	secondary string
	unmatched string
	rules     string
}

func (f *feedFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.primary, "primary", "", "Primary feed (HTML day URL template or XMLTV URL/path); overrides EPGMERGE_PRIMARY_URL")
	cmd.Flags().StringVar(&f.kind, "primary-kind", "", "Primary feed kind: html or xmltv")
	cmd.Flags().StringVar(&f.secondary, "secondary", "", "Secondary XMLTV URL or path; overrides EPGMERGE_SECONDARY_URL")
	cmd.Flags().StringVar(&f.unmatched, "unmatched", "", "Unmatched secondary channels: drop or insert")
	cmd.Flags().StringVar(&f.rules, "rules", "", "YAML identity rules file; overrides EPGMERGE_RULES_FILE")
}

func (f *feedFlags) apply(cmd *cobra.Command, p *pipeline) error {
	flags := cmd.Flags()
	if flags.Changed("primary") {
		p.cfg.PrimaryURL = f.primary
	}
	if flags.Changed("primary-kind") {
		switch f.kind {
		case config.KindHTML, config.KindXMLTV:
			p.cfg.PrimaryKind = f.kind
		default:
			return fmt.Errorf("--primary-kind: want %s or %s, got %q", config.KindHTML, config.KindXMLTV, f.kind)
		}
	}
	if flags.Changed("secondary") {
		p.cfg.SecondaryURL = f.secondary
	}
	if flags.Changed("unmatched") {
		p.cfg.Unmatched = f.unmatched
	}
	if flags.Changed("rules") {
		rules, err := config.LoadRules(f.rules)
		if err != nil {
			return err
		}
		p.cfg.RulesFile = f.rules
		p.rules = rules
	}
	return nil
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var flags feedFlags
	var output string
	var lockWait time.Duration

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fetch both feeds, reconcile them and write the merged XMLTV guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, p); err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				p.cfg.Output = output
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			closeStore, err := p.openStore(runCtx)
			if err != nil {
				return err
			}
			defer closeStore()

			out, err := p.run(runCtx)
			if err != nil {
				return err
			}
			if p.cfg.Output == "-" {
				_, err := cmd.OutOrStdout().Write(out.Guide)
				return err
			}
			if err := writeAtomic(runCtx, p.cfg.Output, out.Guide, lockWait); err != nil {
				return err
			}
			p.log.Info().Str("output", p.cfg.Output).Int("bytes", len(out.Guide)).
				Dur("took", out.Took).Msg("guide written")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (\"-\" for stdout); overrides EPGMERGE_OUTPUT")
	cmd.Flags().DurationVar(&lockWait, "lock-wait", 30*time.Second, "How long to wait for another run's output lock")
	return cmd
}
