package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/epgmerge/internal/feed"
	"github.com/snapetech/epgmerge/internal/httpclient"
	"github.com/snapetech/epgmerge/internal/playlist"
)

// openPlaylist opens "-" (stdin), an http(s) URL or a local file.
func openPlaylist(ctx context.Context, loc string, timeout time.Duration) (io.ReadCloser, error) {
	switch {
	case loc == "" || loc == "-":
		return io.NopCloser(os.Stdin), nil
	case feed.IsRemote(loc):
		return httpclient.Get(ctx, httpclient.WithTimeout(timeout), loc, httpclient.DefaultRetryPolicy)
	default:
		return os.Open(loc)
	}
}

func newRewriteCommand(ctx *commandContext) *cobra.Command {
	var in, out, base, guideURL string

	cmd := &cobra.Command{
		Use:   "rewrite-m3u",
		Short: "Rewrite an M3U playlist's stream URLs onto another base URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("base") {
				base = cfg.M3UBaseURL
			}
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			src, err := openPlaylist(runCtx, in, cfg.FetchTimeout)
			if err != nil {
				return fmt.Errorf("open playlist: %w", err)
			}
			defer src.Close()

			var buf bytes.Buffer
			st, err := playlist.Rewrite(&buf, src, playlist.Options{BaseURL: base, GuideURL: guideURL})
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
					return err
				}
			} else if err := writeAtomic(runCtx, out, buf.Bytes(), 30*time.Second); err != nil {
				return err
			}
			ctx.log().Info().Int("lines", st.Lines).Int("rewritten", st.Rewritten).Msg("playlist rewritten")
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "Playlist path, http(s) URL or - for stdin")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output path or - for stdout")
	cmd.Flags().StringVar(&base, "base", "", "Base URL for stream file names; overrides EPGMERGE_M3U_BASE_URL")
	cmd.Flags().StringVar(&guideURL, "guide-url", "", "Add url-tvg to the #EXTM3U header")
	return cmd
}
