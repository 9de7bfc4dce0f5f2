package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/reconcile"
)

var linkHeaders = []string{"Secondary", "Ref", "Primary", "Method", "Offset", "Samples", "Drift"}

var linkAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}

// linkRows is one row per link; the drift columns are filled for channels
// that were estimated.
func linkRows(rep reconcile.Report, links []guide.IdentityLink) [][]string {
	byChannel := make(map[string]guide.DriftEstimate, len(rep.Drift))
	for _, d := range rep.Drift {
		byChannel[d.ChannelID] = d
	}
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		primary, method := l.PrimaryID, string(l.Method)
		if !l.Matched() {
			primary, method = "-", "unmatched"
		}
		offset, samples, verdict := "", "", ""
		if d, ok := byChannel[l.PrimaryID]; ok && l.Matched() {
			offset = strconv.Itoa(d.OffsetMinutes)
			samples = strconv.Itoa(d.SampleCount)
			verdict = driftVerdict(d)
		}
		rows = append(rows, []string{l.SecondaryName, l.SecondaryRef, primary, method, offset, samples, verdict})
	}
	return rows
}

func driftVerdict(d guide.DriftEstimate) string {
	switch {
	case d.Accepted:
		return fmt.Sprintf("corrected %+d min", d.Correction())
	case d.Reason != nil:
		return d.Reason.Error()
	default:
		return "rejected"
	}
}

// writeReport prints the link table and the summary line. unmatchedOnly keeps
// the channels that did not land on a primary id.
func writeReport(w io.Writer, rep reconcile.Report, unmatchedOnly bool) error {
	links := rep.Links.Links
	if unmatchedOnly {
		links = rep.Links.UnmatchedLinks()
	}
	if err := writeRows(w, linkHeaders, linkRows(rep, links), linkAligns); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, rep.SummaryString())
	return err
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var flags feedFlags
	var asJSON, unmatchedOnly bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Reconcile the feeds and print the channel link and drift table without writing the guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, p); err != nil {
				return err
			}
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out, err := p.run(runCtx)
			if err != nil {
				return err
			}
			rep := out.Result.Report
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return writeReport(cmd.OutOrStdout(), rep, unmatchedOnly)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&unmatchedOnly, "unmatched-only", false, "List only channels without a primary match")
	return cmd
}
