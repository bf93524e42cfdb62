package clicmd

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var multiNewline = regexp.MustCompile(`\n{3,}`)

// renderBody turns a cached message's body into terminal-friendly output.
// Bodies are already HTML-reduced to plain text by internal/message at
// persist time, but a raw MIME fallback can still carry leftover markup,
// so this runs the same HTML-to-Markdown pass before handing off to
// glamour for word wrap and styling.
func renderBody(body string, width int) string {
	if body == "" {
		return ""
	}

	conv := converter.NewConverter(
		converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()),
	)
	markdown, err := conv.ConvertString(body)
	if err != nil {
		markdown = body
	}
	markdown = multiNewline.ReplaceAllString(markdown, "\n\n")

	renderer, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSpace(rendered)
}
