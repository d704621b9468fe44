package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"webtracker/internal/apperr"
	"webtracker/internal/embeddings"
	"webtracker/internal/ingest"
	"webtracker/internal/normalizer"
	"webtracker/internal/storage"
	"webtracker/internal/tracker"
	"webtracker/internal/vectorstore"
)

type ingesterFunc func(ctx context.Context, sub ingest.Submission) (*ingest.Result, error)

func (f ingesterFunc) Submit(ctx context.Context, sub ingest.Submission) (*ingest.Result, error) {
	return f(ctx, sub)
}

func newTestPipeline(t *testing.T) *ingest.Pipeline {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	vectors, err := vectorstore.NewChromemStore("", "test", 2)
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	embedder := embeddings.NewFuncEmbedder(func(_ context.Context, text string) ([]float32, error) {
		return []float32{1, float32(len(text))}, nil
	}, 2, 0)

	return ingest.NewPipeline(db, normalizer.New(), tracker.NewTracker(tracker.PolicyMax), embedder, vectors, 1)
}

func postVisit(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/visit", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestVisitHandler_Pipeline(t *testing.T) {
	h := NewVisitHandler(newTestPipeline(t))

	body := map[string]any{
		"timestamp": "2024-05-01T12:00:00Z",
		"url":       "https://example.com",
		"title":     "Example",
		"content":   "<html><body><p>hello</p></body></html>",
		"version":   2,
		"metadata": map[string]any{
			"isBookmarked": true,
			"topSites":     []map[string]any{{"url": "https://news.test"}},
		},
	}

	w := postVisit(t, h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp VisitResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "new" || resp.Version != 2 || resp.ID != "https://example.com:2" {
		t.Errorf("response = %+v", resp)
	}

	w = postVisit(t, h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d, body = %s", w.Code, w.Body.String())
	}
	resp = VisitResponse{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "duplicate" || resp.Version != 2 {
		t.Errorf("duplicate response = %+v", resp)
	}
}

func TestVisitHandler_Timestamp(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", raw: `"2024-05-01T12:00:00Z"`, want: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{name: "epoch millis", raw: `1700000000000`, want: time.UnixMilli(1_700_000_000_000).UTC()},
		{name: "absent", raw: ``},
		{name: "null", raw: `null`},
		{name: "invalid", raw: `"soon"`, wantErr: true},
		{name: "object", raw: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := VisitRequest{URL: "https://a.test", Content: "x", Timestamp: json.RawMessage(tt.raw)}
			sub, err := req.submission()
			if (err != nil) != tt.wantErr {
				t.Fatalf("submission() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !sub.Timestamp.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", sub.Timestamp, tt.want)
			}
		})
	}
}

func TestVisitHandler_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       any
		err        error
		wantStatus int
	}{
		{name: "method not allowed", method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
		{name: "invalid JSON body", method: http.MethodPost, body: "not json", wantStatus: http.StatusBadRequest},
		{name: "validation", method: http.MethodPost, body: VisitRequest{}, err: apperr.Validation("url", "is required"), wantStatus: http.StatusBadRequest},
		{name: "normalization", method: http.MethodPost, body: VisitRequest{}, err: apperr.Normalization("decode", errors.New("bad bytes")), wantStatus: http.StatusUnprocessableEntity},
		{name: "embedding", method: http.MethodPost, body: VisitRequest{}, err: apperr.Embedding("embed", errors.New("down")), wantStatus: http.StatusBadGateway},
		{name: "transient store", method: http.MethodPost, body: VisitRequest{}, err: apperr.Store("upsert", errors.New("unavailable"), true), wantStatus: http.StatusServiceUnavailable},
		{name: "other", method: http.MethodPost, body: VisitRequest{}, err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewVisitHandler(ingesterFunc(func(context.Context, ingest.Submission) (*ingest.Result, error) {
				if tt.err == nil {
					t.Error("Submit() should not be called")
					return nil, errors.New("unexpected call")
				}
				return nil, tt.err
			}))

			var w *httptest.ResponseRecorder
			if tt.method == http.MethodPost {
				w = postVisit(t, h, tt.body)
			} else {
				w = httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(tt.method, "/visit", nil))
			}

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("error body = %q, want JSON error", w.Body.String())
			}
		})
	}
}
