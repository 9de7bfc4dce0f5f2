package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/snapetech/epgmerge/internal/metrics"
	"github.com/snapetech/epgmerge/internal/reconcile"
)

// guideServer serves the most recent successful guide. A failed refresh
// keeps the previous guide and is reported on /healthz and /report.json.
type guideServer struct {
	p         *pipeline
	writeFile bool
	lockWait  time.Duration

	refreshing sync.Mutex

	mu      sync.RWMutex
	guide   []byte
	report  *reconcile.Report
	updated time.Time
	proxy   string
	lastErr error
}

type reportResponse struct {
	Updated   time.Time         `json:"updated,omitzero"`
	Proxy     string            `json:"proxy,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	Report    *reconcile.Report `json:"report,omitempty"`
}

// refresh runs one cycle unless one is already running.
func (s *guideServer) refresh(ctx context.Context) error {
	if !s.refreshing.TryLock() {
		s.p.log.Info().Msg("serve: refresh already running; skipped")
		return nil
	}
	defer s.refreshing.Unlock()

	out, err := s.p.run(ctx)
	if err == nil && s.writeFile {
		err = writeAtomic(ctx, s.p.cfg.Output, out.Guide, s.lockWait)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		s.p.log.Error().Err(err).Msg("serve: refresh failed; keeping previous guide")
		return err
	}
	s.guide = out.Guide
	rep := out.Result.Report
	s.report = &rep
	s.updated = out.StartedAt
	s.proxy = out.Proxy
	return nil
}

func (s *guideServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/guide.xml", s.serveGuide)
	mux.HandleFunc("/report.json", s.serveReport)
	mux.HandleFunc("/healthz", s.serveHealth)
	if s.p.metrics != nil {
		mux.Handle("/metrics", s.p.metrics.Handler())
	}
	return mux
}

func (s *guideServer) serveGuide(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	data, updated := s.guide, s.updated
	s.mu.RUnlock()
	if data == nil {
		http.Error(w, "guide not built yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	http.ServeContent(w, r, "guide.xml", updated, bytes.NewReader(data))
}

func (s *guideServer) serveReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := reportResponse{Updated: s.updated, Proxy: s.proxy, Report: s.report}
	if s.lastErr != nil {
		resp.LastError = s.lastErr.Error()
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

func (s *guideServer) serveHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready, lastErr := s.guide != nil, s.lastErr
	s.mu.RUnlock()
	switch {
	case !ready && lastErr != nil:
		http.Error(w, "no guide: "+lastErr.Error(), http.StatusServiceUnavailable)
	case !ready:
		http.Error(w, "starting", http.StatusServiceUnavailable)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var flags feedFlags
	var addr string
	var schedule string
	var writeFile bool
	var lockWait time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the merged guide over HTTP and rebuild it on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, p); err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				p.cfg.Addr = addr
			}
			if cmd.Flags().Changed("cron") {
				p.cfg.RefreshCron = schedule
			}
			if err := p.cfg.Validate(); err != nil {
				return err
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
			p.metrics = metrics.New(prometheus.NewRegistry())

			srv := &guideServer{p: p, writeFile: writeFile && p.cfg.Output != "-", lockWait: lockWait}
			_ = srv.refresh(runCtx)

			sched := cron.New(cron.WithLocation(loc))
			if _, err := sched.AddFunc(p.cfg.RefreshCron, func() {
				p.log.Info().Msg("serve: refreshing (scheduled)")
				_ = srv.refresh(runCtx)
			}); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			sigHUP := make(chan os.Signal, 1)
			signal.Notify(sigHUP, syscall.SIGHUP)
			defer signal.Stop(sigHUP)
			go func() {
				for {
					select {
					case <-runCtx.Done():
						return
					case <-sigHUP:
						p.log.Info().Msg("serve: SIGHUP received; refreshing")
						_ = srv.refresh(runCtx)
					}
				}
			}()

			httpSrv := &http.Server{Addr: p.cfg.Addr, Handler: srv.handler(), ReadHeaderTimeout: 10 * time.Second}
			errc := make(chan error, 1)
			go func() {
				p.log.Info().Str("addr", p.cfg.Addr).Str("cron", p.cfg.RefreshCron).Msg("serve: listening")
				errc <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-runCtx.Done():
			}
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			p.log.Info().Msg("serve: stopped")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides EPGMERGE_ADDR")
	cmd.Flags().StringVar(&schedule, "cron", "", "Refresh schedule (cron syntax); overrides EPGMERGE_REFRESH_CRON")
	cmd.Flags().BoolVar(&writeFile, "write", true, "Also write each refreshed guide to EPGMERGE_OUTPUT")
	cmd.Flags().DurationVar(&lockWait, "lock-wait", 30*time.Second, "How long to wait for another run's output lock")
	return cmd
}
