// Package cli implements the faraday command line client.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/faraday/faraday/internal/config"
	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/internal/project"
	"github.com/faraday/faraday/internal/render"
	"github.com/faraday/faraday/internal/storage/local"
	"github.com/faraday/faraday/pkg/client"
)

// App carries the global flags shared by every subcommand.
type App struct {
	StoreDir  string
	ServerURL string
	Plain     bool
	LogLevel  string
	Width     int
}

// NewRootCmd builds the faraday command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Defaults()
	}

	cmd := &cobra.Command{
		Use:          "faraday",
		Short:        "Faraday: AI chat over a local project",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Chat with the assistant; returned files land in the local project
  faraday chat

  # Inspect the project
  faraday tree
  faraday show arduino/blink.ino

  # Sync with a running faraday-server
  faraday --server http://localhost:8080 push
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return logging.Init(logging.Config{
				Level:      app.LogLevel,
				Format:     "console",
				OutputPath: "stderr",
			})
		},
	}

	cmd.PersistentFlags().StringVar(&app.StoreDir, "store", defaultStoreDir(), "Directory holding the local project snapshot")
	cmd.PersistentFlags().StringVar(&app.ServerURL, "server", cfg.ServerURL, "Faraday server URL")
	cmd.PersistentFlags().BoolVar(&app.Plain, "plain", !term.IsTerminal(int(os.Stdout.Fd())), "Disable colors and markdown rendering")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "warn", "Log level (debug|info|warn|error)")

	cmd.AddCommand(newChatCmd(app))
	cmd.AddCommand(newTreeCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newOpenCmd(app))
	cmd.AddCommand(newWriteCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newResetCmd(app))
	cmd.AddCommand(newCopyCmd(app))
	cmd.AddCommand(newPullCmd(app))
	cmd.AddCommand(newPushCmd(app))
	cmd.AddCommand(newFollowCmd(app))

	return cmd
}

func defaultStoreDir() string {
	if dir := os.Getenv("FARADAY_STORE"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".faraday"
	}
	return filepath.Join(home, ".faraday")
}

// openStore opens the local project store and loads its snapshot. A
// corrupt or missing snapshot yields the default project.
func (app *App) openStore(ctx context.Context) (*project.Store, error) {
	backend, err := local.New(local.Config{RootPath: app.StoreDir, CreateDirs: true})
	if err != nil {
		return nil, err
	}
	store := project.New(backend)
	outcome, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	logging.Debug("project loaded",
		zap.String("dir", app.StoreDir),
		zap.String("source", outcome.Source),
		zap.String("reason", outcome.Reason))
	return store, nil
}

func (app *App) client() *client.Client {
	return client.New(client.Config{
		BaseURL:    app.ServerURL,
		Timeout:    150 * time.Second,
		ClientInfo: "faraday-cli",
	})
}

func (app *App) renderer() *render.Renderer {
	width := app.Width
	if width == 0 {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
	}
	return render.New(app.Plain, width)
}
