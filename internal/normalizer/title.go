package normalizer

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// headingTitle returns the first level-1 heading of the markdown, falling back
// to the first level-2 heading that precedes any level-1 heading.
func (n *Normalizer) headingTitle(markdown []byte) string {
	if len(markdown) == 0 {
		return ""
	}

	doc := n.headings.Parser().Parse(text.NewReader(markdown))

	var firstH1, firstH2 string
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if heading, ok := node.(*ast.Heading); ok {
			title := headingText(heading, markdown)
			if heading.Level == 1 && firstH1 == "" {
				firstH1 = title
			} else if heading.Level == 2 && firstH2 == "" && firstH1 == "" {
				firstH2 = title
			}

			if firstH1 != "" {
				return ast.WalkStop, nil
			}
		}

		return ast.WalkContinue, nil
	})

	if firstH1 != "" {
		return firstH1
	}
	return firstH2
}

func headingText(n ast.Node, source []byte) string {
	var sb strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return collapseSpace(sb.String())
}
