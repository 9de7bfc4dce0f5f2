package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snapetech/epgmerge/internal/proxy"
)

func probeRows(results []proxy.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		code := ""
		if r.StatusCode != 0 {
			code = strconv.Itoa(r.StatusCode)
		}
		rows = append(rows, []string{r.Addr, string(r.Status), code, strconv.FormatInt(r.LatencyMs, 10)})
	}
	return rows
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var target string
	var all bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the configured proxy candidates against the guide site",
		Long: "Probe EPGMERGE_PROXIES and EPGMERGE_PROXY_LIST_URL candidates. By default the first\n" +
			"working proxy is printed and the other probes are cancelled; --all probes every candidate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("target") {
				p.cfg.ProxyTarget = target
			}
			loc, err := p.cfg.Location()
			if err != nil {
				return err
			}
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			closeStore, err := p.openStore(runCtx)
			if err != nil {
				return err
			}
			defer closeStore()

			candidates, err := p.proxyCandidates(runCtx)
			if err != nil {
				return err
			}
			dest := p.proxyTarget(loc)
			if dest == "" {
				return fmt.Errorf("no probe target: set EPGMERGE_PROXY_TARGET or EPGMERGE_PRIMARY_URL")
			}

			if all {
				results := proxy.ProbeAll(runCtx, candidates, dest, p.probeOptions())
				for _, r := range results {
					p.observeProbe(runCtx, r)
				}
				return writeRows(cmd.OutOrStdout(), []string{"Proxy", "Status", "HTTP", "Latency ms"}, probeRows(results),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight})
			}
			r, err := proxy.FirstWorking(runCtx, candidates, dest, p.probeOptions())
			if err != nil {
				return err
			}
			p.observeProbe(runCtx, r)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%dms\n", r.Addr, r.LatencyMs)
			return err
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "URL fetched through each proxy; overrides EPGMERGE_PROXY_TARGET")
	cmd.Flags().BoolVar(&all, "all", false, "Probe every candidate and print a table")
	return cmd
}
