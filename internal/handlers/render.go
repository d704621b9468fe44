package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghhtml "github.com/yuin/goldmark/renderer/html"

	"webtracker/internal/apperr"
	"webtracker/internal/contextutil"
	"webtracker/internal/storage"
)

// VisitReader loads stored visits from the relational mirror.
type VisitReader interface {
	GetByVersion(ctx context.Context, url string, version int64) (*storage.Visit, error)
	GetLatest(ctx context.Context, url string) (*storage.Visit, error)
}

// RenderHandler serves the cleaned content of a visit as an HTML page.
type RenderHandler struct {
	visits   VisitReader
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	template *template.Template
}

type renderPageData struct {
	Title     string
	URL       string
	Version   int64
	Timestamp string
	Content   template.HTML
}

// NewRenderHandler creates a new RenderHandler.
func NewRenderHandler(visits VisitReader) *RenderHandler {
	tmpl := template.Must(template.New("visit").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} (version {{.Version}})</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 900px;
      line-height: 1.7;
    }
    header {
      margin-bottom: 2rem;
      border-bottom: 1px solid #ddd;
      padding-bottom: 1rem;
    }
    pre {
      background: #f5f5f5;
      padding: 1rem;
      overflow-x: auto;
    }
    .meta {
      color: #666;
      font-size: 0.95rem;
    }
  </style>
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
    <p class="meta"><a href="{{.URL}}">{{.URL}}</a> &middot; version {{.Version}} &middot; {{.Timestamp}}</p>
  </header>
  <article>{{.Content}}</article>
</body>
</html>`))

	return &RenderHandler{
		visits: visits,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
			goldmark.WithRendererOptions(
				ghhtml.WithUnsafe(),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
		policy:   bluemonday.UGCPolicy(),
		template: tmpl,
	}
}

// ServeHTTP renders a stored visit. Without a version the latest visit is shown.
func (h *RenderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	q := r.URL.Query()
	url := strings.TrimSpace(q.Get("url"))
	if url == "" {
		handleError(ctx, w, apperr.Validation("url", "is required"), "")
		return
	}
	version, hasVersion, err := parseInt("version", q.Get("version"))
	if err != nil {
		handleError(ctx, w, err, "")
		return
	}
	if version < 0 {
		handleError(ctx, w, apperr.Validation("version", "must not be negative"), "")
		return
	}

	var visit *storage.Visit
	if hasVersion {
		visit, err = h.visits.GetByVersion(ctx, url, version)
	} else {
		visit, err = h.visits.GetLatest(ctx, url)
	}
	if errors.Is(err, storage.ErrNotFound) {
		writeError(ctx, w, http.StatusNotFound, "visit not found")
		return
	}
	if err != nil {
		handleError(ctx, w, apperr.Store("load_visit", err, storage.IsBusy(err)), "failed to load visit")
		return
	}

	body, err := h.render(visit.CleanedContent)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render visit", "url", url, "version", visit.Version, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to render visit")
		return
	}

	title := visit.Title
	if title == "" {
		title = visit.URL
	}
	data := renderPageData{
		Title:     title,
		URL:       visit.URL,
		Version:   visit.Version,
		Timestamp: visit.Timestamp.UTC().Format(time.RFC3339),
		Content:   template.HTML(body),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, data); err != nil {
		logger.ErrorContext(ctx, "failed to execute visit template", "url", url, "error", err)
	}
}

// render converts cleaned markdown to sanitized HTML.
func (h *RenderHandler) render(content string) (string, error) {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(content), &buf); err != nil {
		return "", apperr.Normalization("render", fmt.Errorf("convert markdown: %w", err))
	}
	return h.policy.Sanitize(buf.String()), nil
}
