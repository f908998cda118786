package experiment

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/bookedby/convoqa/internal/models"
)

const summaryMaxLen = 120

// DescribeVariant produces a one-line summary of a variant for list and
// report output. Prompt variants are markdown, so the first heading (or
// failing that, the first paragraph) is used; other types fall back to the
// first line of raw content.
func DescribeVariant(v *models.Variant) string {
	if v.Type == models.VariantTypePrompt {
		if summary := firstMarkdownText(v.Content); summary != "" {
			return truncate(summary, summaryMaxLen)
		}
	}
	line := v.Content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return truncate(strings.TrimSpace(line), summaryMaxLen)
}

func firstMarkdownText(content string) string {
	source := []byte(content)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var heading, paragraph string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			if heading == "" {
				heading = nodeText(n, source)
			}
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph:
			if paragraph == "" {
				paragraph = nodeText(n, source)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	if heading != "" {
		return heading
	}
	return paragraph
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
