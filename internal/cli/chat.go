package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/faraday/faraday/internal/conversation"
	"github.com/faraday/faraday/internal/project"
	"github.com/faraday/faraday/internal/render"
)

const chatHelp = `Commands:
  /new           start a new conversation
  /list          list conversations
  /tree          show the project tree
  /open <path>   make a file active
  /quit          exit`

func newChatCmd(app *App) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant; returned files are written to the local project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := app.openStore(ctx)
			if err != nil {
				return err
			}
			p := &repl{
				session: conversation.NewSession(app.client(), store),
				store:   store,
				render:  app.renderer(),
				out:     cmd.OutOrStdout(),
			}
			if message != "" {
				p.handle(ctx, message)
				return nil
			}
			return p.run(ctx, filepath.Join(app.StoreDir, "history"))
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Send one message and exit")
	return cmd
}

type repl struct {
	session *conversation.Session
	store   *project.Store
	render  *render.Renderer
	out     io.Writer
}

func (p *repl) run(ctx context.Context, historyPath string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(p.out, p.render.Header("Type a message, or /help for commands."))
	for {
		input, err := line.Prompt("faraday> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(p.out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)
		if p.handle(ctx, input) {
			return nil
		}
	}
}

// handle runs one line of input and reports whether the REPL should exit.
func (p *repl) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		p.send(ctx, input)
		return false
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(p.out, chatHelp)
	case "/new":
		c := p.session.NewConversation()
		fmt.Fprintln(p.out, p.render.Header("new conversation "+c.ID))
	case "/list":
		active, _ := p.session.Active()
		for _, c := range p.session.Conversations() {
			marker := "  "
			if c.ID == active.ID {
				marker = "> "
			}
			fmt.Fprintf(p.out, "%s%s (%d messages)\n", marker, c.Title, len(c.Messages))
		}
	case "/tree":
		fmt.Fprintln(p.out, p.render.Tree(p.store.Snapshot()))
	case "/open":
		if _, err := p.store.File(arg); err != nil {
			fmt.Fprintf(p.out, "no such file: %s\n", arg)
			return false
		}
		if _, err := p.store.SetActivePath(ctx, arg); err != nil {
			fmt.Fprintf(p.out, "warning: %v\n", err)
		}
		fmt.Fprintln(p.out, p.render.Header("active: "+arg))
	default:
		fmt.Fprintf(p.out, "unknown command %s\n%s\n", cmd, chatHelp)
	}
	return false
}

func (p *repl) send(ctx context.Context, content string) {
	turn, err := p.session.Send(ctx, content)
	if err != nil {
		fmt.Fprintf(p.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(p.out, p.render.Markdown(turn.Reply.Content))
	for _, path := range turn.Files {
		fmt.Fprintln(p.out, p.render.Header("updated "+path))
	}
	if turn.PersistErr != nil {
		fmt.Fprintf(p.out, "warning: files applied but not saved: %v\n", turn.PersistErr)
	}
}
