// Package render formats project state and assistant replies for the terminal.
package render

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/faraday/faraday/pkg/models"
	"github.com/faraday/faraday/pkg/tree"
)

var (
	folderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	fileStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Renderer turns markdown, code and trees into terminal text. With Plain set
// nothing is styled, which is what piped output wants.
type Renderer struct {
	Plain bool
	Width int

	mu sync.Mutex
	md *glamour.TermRenderer
}

// New creates a renderer wrapping markdown at width columns.
func New(plain bool, width int) *Renderer {
	if width < 20 {
		width = 80
	}
	return &Renderer{Plain: plain, Width: width}
}

// Markdown renders an assistant reply. Rendering failures fall back to the
// raw text.
func (r *Renderer) Markdown(md string) string {
	md = strings.TrimSpace(md)
	if md == "" || r.Plain {
		return md
	}

	r.mu.Lock()
	if r.md == nil {
		// A fixed style avoids terminal background queries.
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(r.Width),
		)
		if err != nil {
			r.mu.Unlock()
			return md
		}
		r.md = tr
	}
	tr := r.md
	r.mu.Unlock()

	out, err := tr.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// LexerName maps a project language tag to a chroma lexer name.
func LexerName(lang models.Language) string {
	switch lang {
	case models.LanguageTypeScript:
		return "typescript"
	case models.LanguageTSX:
		return "tsx"
	case models.LanguageJSON:
		return "json"
	case models.LanguageMarkdown:
		return "markdown"
	case models.LanguageArduino:
		return "arduino"
	}
	return "plaintext"
}

// Code highlights file content according to its language tag.
func (r *Renderer) Code(f models.ProjectFile) string {
	if r.Plain {
		return f.Content
	}
	lang := f.Language
	if lang == "" {
		lang = models.InferLanguage(f.Path)
	}

	lexer := lexers.Get(LexerName(lang))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, f.Content)
	if err != nil {
		return f.Content
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return f.Content
	}
	return buf.String()
}

// Tree draws the project tree, one node per line, marking the active file.
func (r *Renderer) Tree(state models.ProjectState) string {
	nodes := tree.Build(state.Files)
	if len(nodes) == 0 {
		return r.style(mutedStyle, "(no files)")
	}

	var b strings.Builder
	tree.Walk(nodes, func(n *models.TreeNode, depth int) {
		indent := strings.Repeat("  ", depth)
		switch {
		case n.IsFolder():
			b.WriteString(indent + "  " + r.style(folderStyle, n.Name+"/"))
		case n.File != nil && n.File.Path == state.ActivePath:
			b.WriteString(indent + r.style(activeStyle, "> "+n.Name))
		default:
			b.WriteString(indent + "  " + r.style(fileStyle, n.Name))
		}
		b.WriteByte('\n')
	})
	return strings.TrimRight(b.String(), "\n")
}

// Header renders a short muted caption such as a file path.
func (r *Renderer) Header(s string) string {
	return r.style(mutedStyle, s)
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.Plain {
		return text
	}
	return s.Render(text)
}
