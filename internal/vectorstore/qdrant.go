package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"webtracker/internal/apperr"
	"webtracker/internal/contextutil"
)

const scrollPageSize = 256

// QdrantStore implements Store using Qdrant over gRPC.
// Point ids are PointUUID(record id); the record id is kept in the payload.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantStore(urlStr, collection string, dim int) (*QdrantStore, error) {
	host, port, err := grpcTarget(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: collection,
		dim:        dim,
	}, nil
}

// grpcTarget derives the gRPC host and port from the Qdrant HTTP URL.
func grpcTarget(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// Close releases the gRPC connections.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// IsTransientError reports whether a Qdrant error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func storeErr(op string, err error) error {
	return apperr.Store(op, err, IsTransientError(err))
}

// Upsert inserts or updates records in the collection.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != s.dim {
			return apperr.Store("upsert", fmt.Errorf("record %q has vector size %d, expected %d", rec.ID, len(rec.Vector), s.dim), false)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointUUID(rec.ID)),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(payload(rec)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", s.collection, "count", len(records), "error", err)
		return storeErr("upsert", err)
	}

	logger.DebugContext(ctx, "upserted points", "collection", s.collection, "count", len(records))
	return nil
}

// Get retrieves records by id, including vectors.
func (s *QdrantStore) Get(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs(ids),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, storeErr("get", err)
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		rec := recordFromPayload(convertPayloadToMap(p.GetPayload()))
		rec.Vector = denseVector(p.GetVectors())
		records = append(records, rec)
	}
	return records, nil
}

// QueryByFilter scrolls through every matching point.
func (s *QdrantStore) QueryByFilter(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	var (
		records []Record
		offset  *qdrant.PointId
	)
	for {
		points, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         qdrantFilter(filter),
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, storeErr("query_by_filter", err)
		}
		for _, p := range points {
			records = append(records, recordFromPayload(convertPayloadToMap(p.GetPayload())))
		}
		if next == nil || len(points) == 0 {
			break
		}
		offset = next
	}

	sortByTimestamp(records)
	return truncate(records, limit), nil
}

// QueryBySimilarity performs a cosine similarity search with an optional filter.
func (s *QdrantStore) QueryBySimilarity(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, apperr.Validation("k", "must be greater than 0")
	}
	if len(vector) != s.dim {
		return nil, apperr.Store("query_by_similarity", fmt.Errorf("query vector size %d, expected %d", len(vector), s.dim), false)
	}

	limit := uint64(k)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qdrantFilter(filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", s.collection, "k", k, "error", err)
		return nil, storeErr("query_by_similarity", err)
	}

	results := make([]Result, 0, len(scored))
	for _, p := range scored {
		results = append(results, Result{
			Record: recordFromPayload(convertPayloadToMap(p.GetPayload())),
			Score:  p.GetScore(),
		})
	}
	sortByScore(results)
	return results, nil
}

// Delete removes points by their record ids.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", s.collection, "count", len(ids), "error", err)
		return storeErr("delete", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", s.collection, "count", len(ids))
	return nil
}

// Health checks that the Qdrant server answers.
func (s *QdrantStore) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return storeErr("health", err)
	}
	return nil
}

// EnsureCollection ensures the collection exists with the configured vector size
// and payload indexes. An existing collection with another size is an error.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("failed to get collection info: %w", err)
		}
		actual := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if actual == 0 {
			return errors.New("could not determine collection vector size")
		}
		if int(actual) != s.dim {
			return fmt.Errorf("collection vector size mismatch: expected %d, got %d", s.dim, actual)
		}
		logger.InfoContext(ctx, "collection validated", "collection", s.collection, "vector_size", s.dim)
		return nil
	}

	logger.InfoContext(ctx, "creating collection", "collection", s.collection, "vector_size", s.dim)
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for field, fieldType := range payloadIndexes {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			FieldName:      field,
			FieldType:      qdrant.PtrOf(fieldType),
		})
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", field, err)
		}
	}
	return nil
}

var payloadIndexes = map[string]qdrant.FieldType{
	fieldID:          qdrant.FieldType_FieldTypeKeyword,
	fieldURL:         qdrant.FieldType_FieldTypeKeyword,
	fieldType:        qdrant.FieldType_FieldTypeKeyword,
	fieldContentHash: qdrant.FieldType_FieldTypeKeyword,
	fieldVersion:     qdrant.FieldType_FieldTypeInteger,
	fieldTimestamp:   qdrant.FieldType_FieldTypeInteger,
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, qdrant.NewID(PointUUID(id)))
	}
	return out
}

// qdrantFilter translates f into must-conditions. It returns nil when f is empty.
func qdrantFilter(f Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	for field, value := range f.equality() {
		must = append(must, qdrant.NewMatchKeyword(field, value))
	}
	if r := qdrantRange(f.VersionMin, f.VersionMax); r != nil {
		must = append(must, qdrant.NewRange(fieldVersion, r))
	}
	if r := qdrantRange(f.TimestampMin, f.TimestampMax); r != nil {
		must = append(must, qdrant.NewRange(fieldTimestamp, r))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func qdrantRange(lo, hi *int64) *qdrant.Range {
	if lo == nil && hi == nil {
		return nil
	}
	r := &qdrant.Range{}
	if lo != nil {
		r.Gte = qdrant.PtrOf(float64(*lo))
	}
	if hi != nil {
		r.Lte = qdrant.PtrOf(float64(*hi))
	}
	return r
}

func payload(rec Record) map[string]any {
	m := rec.Metadata
	return map[string]any{
		fieldID:          rec.ID,
		fieldType:        m.Type,
		fieldURL:         m.URL,
		fieldTitle:       m.Title,
		fieldTimestamp:   m.Timestamp,
		fieldVersion:     m.Version,
		fieldContentHash: m.ContentHash,
		fieldDocument:    rec.Document,
	}
}

func recordFromPayload(p map[string]any) Record {
	return Record{
		ID:       stringField(p, fieldID),
		Document: stringField(p, fieldDocument),
		Metadata: Metadata{
			Type:        stringField(p, fieldType),
			URL:         stringField(p, fieldURL),
			Title:       stringField(p, fieldTitle),
			Timestamp:   intField(p, fieldTimestamp),
			Version:     intField(p, fieldVersion),
			ContentHash: stringField(p, fieldContentHash),
		},
	}
}

func stringField(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func intField(p map[string]any, key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func denseVector(v *qdrant.VectorsOutput) []float32 {
	out := v.GetVector()
	if dense := out.GetDense(); dense != nil {
		return dense.GetData()
	}
	return out.GetData() //nolint:staticcheck // older servers only fill the deprecated field
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
