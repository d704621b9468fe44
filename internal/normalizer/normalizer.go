// Package normalizer turns captured page markup into clean markdown text and
// absolute link and image references.
package normalizer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"webtracker/internal/apperr"
)

// ErrInvalidUTF8 is returned when the captured markup is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("content is not valid UTF-8")

// Elements that never carry readable content.
var strippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// Result is the normalized form of one captured page.
type Result struct {
	// Text is the markdown rendition of the page body.
	Text string
	// Title is the document title, or the first top-level heading when the page has none.
	Title string
	// Links are absolute anchor targets in document order, without duplicates.
	Links []string
	// Images are absolute image sources in document order, without duplicates.
	Images []string
}

// Normalizer converts HTML to markdown. It is safe for concurrent use.
type Normalizer struct {
	md       *converter.Converter
	headings goldmark.Markdown
}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				strikethrough.NewStrikethroughPlugin(),
				table.NewTablePlugin(),
			),
		),
		headings: goldmark.New(),
	}
}

// Normalize parses rawHTML, removes non-content elements, resolves link and
// image references against baseURL and converts the remaining tree to markdown.
// Identical input always yields identical output.
func (n *Normalizer) Normalize(rawHTML, baseURL string) (*Result, error) {
	if !utf8.ValidString(rawHTML) {
		return nil, apperr.Normalization("decode", ErrInvalidUTF8)
	}

	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, apperr.Normalization("base_url", err)
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, apperr.Normalization("parse", err)
	}

	res := &Result{}
	c := newCollector(base)
	res.Title = c.walk(doc)
	res.Links = c.links.items
	res.Images = c.images.items

	// The converter mutates the tree, so references are collected first.
	md, err := n.md.ConvertNode(doc, converter.WithDomain(base.String()))
	if err != nil {
		return nil, apperr.Normalization("convert", err)
	}
	res.Text = strings.TrimSpace(string(md))

	if res.Title == "" {
		res.Title = n.headingTitle([]byte(res.Text))
	}

	return res, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", raw)
	}
	return u, nil
}

// orderedSet keeps first-seen order.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

type collector struct {
	base   *url.URL
	links  orderedSet
	images orderedSet
	title  string
}

func newCollector(base *url.URL) *collector {
	return &collector{
		base:   base,
		links:  orderedSet{seen: make(map[string]struct{})},
		images: orderedSet{seen: make(map[string]struct{})},
	}
}

// walk strips non-content elements from the tree, records link and image
// references and returns the text of the first <title>.
func (c *collector) walk(doc *html.Node) string {
	var removed []*html.Node

	var visit func(node *html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.ElementNode {
			if strippedElements[node.DataAtom] {
				removed = append(removed, node)
				return
			}
			switch node.DataAtom {
			case atom.Title:
				if c.title == "" {
					c.title = collapseSpace(textContent(node))
				}
			case atom.A:
				if ref, ok := c.resolve(attr(node, "href")); ok {
					c.links.add(ref)
				}
			case atom.Img:
				if ref, ok := c.resolve(attr(node, "src")); ok {
					c.images.add(ref)
				}
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(doc)

	for _, node := range removed {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}

	return c.title
}

// resolve turns a reference into an absolute URL. Script and inline data
// references are dropped.
func (c *collector) resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "javascript", "data":
		return "", false
	}
	return c.base.ResolveReference(u).String(), true
}

func attr(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textContent(node *html.Node) string {
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(node)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
