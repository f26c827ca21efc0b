package web

import (
	"bytes"
	"html/template"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"

	"curator/internal/wikilink"
)

var mdRenderer = goldmark.New(
	goldmark.WithExtensions(
		highlighting.NewHighlighting(
			highlighting.WithStyle("friendly"),
			highlighting.WithFormatOptions(
				chromahtml.WithLineNumbers(false),
			),
		),
	),
)

// renderMarkdown turns display-form content into HTML, first rewriting link
// tokens into plain markdown: page links become anchors, everything else a
// readable label (the full record views live elsewhere in the app).
func renderMarkdown(display string) (template.HTML, error) {
	linked := linkifyTokens(display)
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(linked), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func linkifyTokens(display string) string {
	tokens := wikilink.Tokens(display)
	if len(tokens) == 0 {
		return display
	}
	pairs := make([]string, 0, len(tokens)*2)
	for _, tok := range tokens {
		var repl string
		if tok.Kind == wikilink.KindPage {
			repl = "[" + tok.Ref + "](/wiki/" + tok.Ref + ")"
		} else {
			repl = "`" + string(tok.Kind) + ":" + tok.Ref + "`"
		}
		pairs = append(pairs, tok.Raw, repl)
	}
	return strings.NewReplacer(pairs...).Replace(display)
}
