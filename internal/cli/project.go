package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/faraday/faraday/internal/project"
	"github.com/faraday/faraday/pkg/models"
)

func newTreeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the project tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.renderer().Tree(store.Snapshot()))
			return nil
		},
	}
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [path]",
		Short: "Print a file with syntax highlighting (default: the active file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			f, err := lookup(store, args)
			if err != nil {
				return err
			}
			r := app.renderer()
			out := cmd.OutOrStdout()
			if !app.Plain {
				fmt.Fprintln(out, r.Header(fmt.Sprintf("%s (%s)", f.Path, f.Language)))
			}
			fmt.Fprint(out, r.Code(f))
			if !strings.HasSuffix(f.Content, "\n") {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newOpenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Make a file the active file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := store.File(args[0]); err != nil {
				return fmt.Errorf("no such file: %s", args[0])
			}
			state, err := store.SetActivePath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), state.ActivePath)
			return nil
		},
	}
}

func newWriteCmd(app *App) *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "write <path> [file|-]",
		Short: "Create or replace a file from a local file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang := models.Language(language)
			if lang != "" && !lang.Valid() {
				return fmt.Errorf("unknown language %q", language)
			}
			src := "-"
			if len(args) == 2 {
				src = args[1]
			}
			content, err := readSource(cmd, src)
			if err != nil {
				return err
			}

			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			state, err := store.UpsertFile(cmd.Context(), models.ProjectFile{
				Path:     args[0],
				Content:  string(content),
				Language: lang,
			})
			if err != nil {
				return err
			}
			f, _ := state.Find(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d bytes)\n", f.Path, f.Language, len(f.Content))
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Language tag (inferred from the extension when empty)")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the project snapshot as JSON (default: stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			data, err := project.Encode(store.Snapshot())
			if err != nil {
				return err
			}
			if len(args) == 0 || args[0] == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(args[0], data, 0644)
		},
	}
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the project with a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			state, notes, err := project.Decode(data)
			if err != nil {
				return err
			}
			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			state, err = store.ReplaceAll(cmd.Context(), state)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, n := range notes {
				fmt.Fprintln(cmd.ErrOrStderr(), "note:", n)
			}
			fmt.Fprintf(out, "imported %d files, active %s\n", len(state.Files), state.ActivePath)
			return nil
		},
	}
}

func newResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Replace the project with the default files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			state, err := store.ReplaceAll(cmd.Context(), project.DefaultState())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset to %d default files\n", len(state.Files))
			return nil
		},
	}
}

func newCopyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "copy [path]",
		Short: "Copy a file to the clipboard (default: the active file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			f, err := lookup(store, args)
			if err != nil {
				return err
			}
			if err := clipboard.WriteAll(f.Content); err != nil {
				return fmt.Errorf("copy to clipboard: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %s\n", f.Path)
			return nil
		},
	}
}

// lookup returns the named file, or the active file when args is empty.
func lookup(store *project.Store, args []string) (models.ProjectFile, error) {
	if len(args) == 0 {
		f, err := store.ActiveFile()
		if errors.Is(err, project.ErrNotFound) {
			return f, errors.New("project has no files")
		}
		return f, err
	}
	f, err := store.File(args[0])
	if errors.Is(err, project.ErrNotFound) {
		return f, fmt.Errorf("no such file: %s", args[0])
	}
	return f, err
}

func readSource(cmd *cobra.Command, src string) ([]byte, error) {
	if src == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(src)
}
