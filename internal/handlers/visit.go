package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"webtracker/internal/apperr"
	"webtracker/internal/contextutil"
	"webtracker/internal/enrich"
	"webtracker/internal/ingest"
	"webtracker/internal/tracker"
)

// maxVisitBody bounds the size of a visit submission.
const maxVisitBody = 16 << 20

// Ingester submits visits to the write path.
type Ingester interface {
	Submit(ctx context.Context, sub ingest.Submission) (*ingest.Result, error)
}

// VisitHandler handles HTTP requests that submit page visits.
type VisitHandler struct {
	ingester Ingester
}

// NewVisitHandler creates a new VisitHandler.
func NewVisitHandler(ingester Ingester) *VisitHandler {
	return &VisitHandler{ingester: ingester}
}

// VisitRequest is the payload sent by the browser extension.
//
// swagger:model VisitRequest
type VisitRequest struct {
	// RFC3339 string or epoch milliseconds. Defaults to server time.
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
	URL         string          `json:"url"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	ContentHash string          `json:"contentHash"`
	Version     int64           `json:"version"`
	Metadata    enrich.Metadata `json:"metadata"`
}

// VisitResponse reports the outcome of a submission.
//
// swagger:model VisitResponse
type VisitResponse struct {
	// "new" or "duplicate"
	Status      string `json:"status"`
	Version     int64  `json:"version"`
	ID          string `json:"id,omitempty"`
	ContentHash string `json:"content_hash"`
	Message     string `json:"message"`
}

// ServeHTTP handles visit submissions.
//
// swagger:route POST /visit submitVisit
//
// Records a page visit. Duplicate content for the same url is acknowledged
// without creating a new version.
//
// responses:
//
//	'200': VisitResponse
//	'400': ErrorResponse
//	'422': ErrorResponse
//	'502': ErrorResponse
//	'503': ErrorResponse
func (h *VisitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req VisitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxVisitBody))
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := req.submission()
	if err != nil {
		handleError(ctx, w, err, "Invalid request")
		return
	}

	res, err := h.ingester.Submit(ctx, sub)
	if err != nil {
		handleError(ctx, w, err, "Failed to record visit")
		return
	}

	writeJSON(ctx, w, http.StatusOK, VisitResponse{
		Status:      res.Outcome.String(),
		Version:     res.Version,
		ID:          res.ID,
		ContentHash: res.ContentHash,
		Message:     message(res),
	})
}

func (req VisitRequest) submission() (ingest.Submission, error) {
	sub := ingest.Submission{
		URL:         req.URL,
		Title:       req.Title,
		Content:     req.Content,
		ContentHash: req.ContentHash,
		Version:     req.Version,
		Metadata:    req.Metadata,
	}

	raw := bytes.TrimSpace(req.Timestamp)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return sub, nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return sub, apperr.Validation("timestamp", "invalid string")
		}
	} else {
		var ms float64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return sub, apperr.Validation("timestamp", "must be an RFC3339 string or epoch milliseconds")
		}
		s = strconv.FormatInt(int64(ms), 10)
	}

	ts, err := parseTime("timestamp", s)
	if err != nil {
		return sub, err
	}
	sub.Timestamp = ts
	return sub, nil
}

func message(res *ingest.Result) string {
	if res.Outcome == tracker.OutcomeDuplicate {
		return "Content already recorded for this url"
	}
	if res.Snapshots > 0 {
		return "Visit recorded with " + strconv.Itoa(res.Snapshots) + " snapshots"
	}
	return "Visit recorded"
}
