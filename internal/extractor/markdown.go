package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type markdownHandler struct {
	md goldmark.Markdown
}

func NewMarkdown() Handler {
	return &markdownHandler{md: goldmark.New()}
}

func (h *markdownHandler) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (h *markdownHandler) Priority() int {
	return 10
}

// Extract flattens the markdown AST to plain text, one blank line between
// blocks and code blocks kept verbatim.
func (h *markdownHandler) Extract(_ context.Context, in Input) (string, error) {
	src := in.Data
	doc := h.md.Parser().Parse(text.NewReader(src))
	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
			return ast.WalkContinue, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				endBlock(&buf)
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkContinue, nil
		}
		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			endBlock(&buf)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func endBlock(buf *bytes.Buffer) {
	if buf.Len() == 0 || bytes.HasSuffix(buf.Bytes(), []byte("\n\n")) {
		return
	}
	if bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
		return
	}
	buf.WriteString("\n\n")
}
