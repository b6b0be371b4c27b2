package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/pkg/client"
)

func newPullCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace the local project with the server's",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			remote, err := app.client().Project(ctx)
			if err != nil {
				return fmt.Errorf("fetch project from %s: %w", app.ServerURL, err)
			}
			store, err := app.openStore(ctx)
			if err != nil {
				return err
			}
			state, err := store.ReplaceAll(ctx, remote)
			if err != nil {
				return err
			}
			logging.Info("pulled project", zap.String("server", app.ServerURL), zap.Int("files", len(state.Files)))
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %d files, active %s\n", len(state.Files), state.ActivePath)
			return nil
		},
	}
}

func newPushCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Replace the server's project with the local one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := app.openStore(ctx)
			if err != nil {
				return err
			}
			state, err := app.client().ReplaceProject(ctx, store.Snapshot())
			if err != nil {
				return fmt.Errorf("push project to %s: %w", app.ServerURL, err)
			}
			logging.Info("pushed project", zap.String("server", app.ServerURL), zap.Int("files", len(state.Files)))
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d files, active %s\n", len(state.Files), state.ActivePath)
			return nil
		},
	}
}

func newFollowCmd(app *App) *cobra.Command {
	var (
		pull  bool
		count int
	)
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Print the server's project events as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()
			seen := 0
			for ev := range client.NewSSEClient(app.ServerURL).Subscribe(ctx) {
				at := time.Unix(ev.Timestamp, 0).Format(time.TimeOnly)
				fmt.Fprintf(out, "%s %-8s active=%s files=%d", at, ev.Type, ev.ActivePath, ev.FileCount)
				if ev.Path != "" {
					fmt.Fprintf(out, " path=%s", ev.Path)
				}
				fmt.Fprintln(out)

				if pull {
					remote, err := app.client().Project(ctx)
					if err != nil {
						logging.Warn("follow: fetch project failed", zap.Error(err))
					} else if store, err := app.openStore(ctx); err != nil {
						logging.Warn("follow: open store failed", zap.Error(err))
					} else if _, err := store.ReplaceAll(ctx, remote); err != nil {
						logging.Warn("follow: save project failed", zap.Error(err))
					}
				}

				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}
			return cmd.Context().Err()
		},
	}
	cmd.Flags().BoolVar(&pull, "sync", false, "Pull the server project into the local store after each event")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many events (0 = run until interrupted)")
	return cmd
}
