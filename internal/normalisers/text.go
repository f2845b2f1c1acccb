package normalisers

import (
	"html"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

var (
	_ driven.Normaliser = (*PlaintextNormaliser)(nil)
	_ driven.Normaliser = (*MarkdownNormaliser)(nil)
	_ driven.Normaliser = (*HTMLNormaliser)(nil)
)

var (
	multiSpace    = regexp.MustCompile(`[ \t]+`)
	multiNewline  = regexp.MustCompile(`\n{3,}`)
	mdImage       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdEmphasis    = regexp.MustCompile(`(\*\*|__|~~)(\S(?:.*?\S)?)(\*\*|__|~~)`)
	mdItalic      = regexp.MustCompile(`(^|[\s(])[*_](\S(?:[^*_]*\S)?)[*_]`)
	mdHeading     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdQuote       = regexp.MustCompile(`(?m)^>\s?`)
	mdRule        = regexp.MustCompile(`(?m)^\s*(?:[-*_]\s*){3,}$`)
	mdInlineCode  = regexp.MustCompile("`([^`]*)`")
	mdListBullets = regexp.MustCompile(`(?m)^\s*[*+]\s+`)
)

// PlaintextNormaliser is the fallback for any content type.
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content string, mimeType string) string {
	return tidy(content)
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{"text/plain", "*/*"}
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

// MarkdownNormaliser turns Reddit-flavoured Markdown into prose. Link and
// emphasis syntax is dropped, the visible text is kept.
type MarkdownNormaliser struct{}

func (n *MarkdownNormaliser) Normalise(content string, mimeType string) string {
	// Reddit escapes &, < and > in selftext
	content = html.UnescapeString(content)

	content = mdImage.ReplaceAllString(content, "$1")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdEmphasis.ReplaceAllString(content, "$2")
	content = mdItalic.ReplaceAllString(content, "$1$2")
	content = mdRule.ReplaceAllString(content, "")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdQuote.ReplaceAllString(content, "")
	content = mdListBullets.ReplaceAllString(content, "- ")
	content = strings.ReplaceAll(content, "\u200b", "")

	return tidy(content)
}

func (n *MarkdownNormaliser) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (n *MarkdownNormaliser) Priority() int {
	return 50
}

// HTMLNormaliser extracts the visible text of an HTML fragment.
type HTMLNormaliser struct{}

func (n *HTMLNormaliser) Normalise(content string, mimeType string) string {
	doc, err := nethtml.Parse(strings.NewReader(content))
	if err != nil {
		return tidy(content)
	}

	var buf strings.Builder
	var extractText func(*nethtml.Node)
	extractText = func(node *nethtml.Node) {
		if node.Type == nethtml.ElementNode {
			switch node.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.Br:
				buf.WriteString("\n")
			}
		}
		if node.Type == nethtml.TextNode {
			buf.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
		if node.Type == nethtml.ElementNode && isBlock(node.DataAtom) {
			buf.WriteString("\n")
		}
	}
	extractText(doc)

	return tidy(buf.String())
}

func (n *HTMLNormaliser) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (n *HTMLNormaliser) Priority() int {
	return 50
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Blockquote, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Tr, atom.Table, atom.Hr:
		return true
	}
	return false
}

// tidy normalises line endings and collapses runs of blanks.
func tidy(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\u00a0", " ")
	content = multiSpace.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")
	content = multiNewline.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
