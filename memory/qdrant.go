package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/hupe1980/echokernel/core"
)

const payloadText = "content"

// QdrantOptions configure a QdrantStore.
type QdrantOptions struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// Dimensions of the vectors; required to create the collection.
	Dimensions int
}

// QdrantStore is a MemoryStore backed by a Qdrant collection using cosine
// distance. The collection is created lazily on first Add when missing.
type QdrantStore struct {
	client *qdrant.Client
	opts   QdrantOptions

	once    sync.Once
	initErr error
}

var _ core.MemoryStore = (*QdrantStore)(nil)

// NewQdrantStore connects to Qdrant. The gRPC connection is established lazily
// by the client, so this does not fail for an unreachable server.
func NewQdrantStore(optFns ...func(o *QdrantOptions)) (*QdrantStore, error) {
	opts := QdrantOptions{Host: "localhost", Port: 6334, Collection: "echokernel"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant store requires vector dimensions")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{client: client, opts: opts}, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	s.once.Do(func() {
		exists, err := s.client.CollectionExists(ctx, s.opts.Collection)
		if err != nil {
			s.initErr = fmt.Errorf("failed to check collection: %w", err)
			return
		}
		if exists {
			return
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.opts.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.opts.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			s.initErr = fmt.Errorf("failed to create collection: %w", err)
		}
	})
	return s.initErr
}

// Add upserts a new point with a fresh uuid; the text travels in the payload.
func (s *QdrantStore) Add(ctx context.Context, text string, vector []float32, metadata map[string]any) (string, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return "", err
	}

	payload := make(map[string]*qdrant.Value, len(metadata)+1)
	for key, value := range metadata {
		val, err := qdrant.NewValue(value)
		if err != nil {
			val = qdrant.NewValueString(fmt.Sprint(value))
		}
		payload[key] = val
	}
	payload[payloadText] = qdrant.NewValueString(text)

	id := uuid.NewString()
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.opts.Collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert point: %w", err)
	}
	return id, nil
}

// Search performs vector similarity search.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]core.SearchResult, error) {
	if topK <= 0 {
		return []core.SearchResult{}, nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.opts.Collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	out := make([]core.SearchResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		rec := recordFromPayload(pointID(point.GetId()), point.GetPayload())
		out = append(out, core.SearchResult{Record: rec, Score: float64(point.GetScore())})
	}
	return out, nil
}

// Get retrieves a point with payload and vector.
func (s *QdrantStore) Get(ctx context.Context, id string) (core.MemoryRecord, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.opts.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return core.MemoryRecord{}, fmt.Errorf("failed to get point: %w", err)
	}
	if len(points) == 0 {
		return core.MemoryRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p := points[0]
	rec := recordFromPayload(pointID(p.GetId()), p.GetPayload())
	if v := p.GetVectors().GetVector(); v != nil {
		if dense, ok := v.GetVector().(*qdrant.VectorOutput_Dense); ok && dense.Dense != nil {
			rec.Vector = dense.Dense.GetData()
		}
	}
	return rec, nil
}

// Delete removes a point by id.
func (s *QdrantStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.opts.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{qdrant.NewID(id)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error { return s.client.Close() }

func pointID(id *qdrant.PointId) string {
	switch v := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func recordFromPayload(id string, payload map[string]*qdrant.Value) core.MemoryRecord {
	rec := core.MemoryRecord{ID: id, Metadata: make(map[string]any, len(payload))}
	for key, value := range payload {
		if key == payloadText {
			rec.Text = value.GetStringValue()
			continue
		}
		rec.Metadata[key] = fromValue(value)
	}
	return rec
}

// fromValue converts a Qdrant Value back to a Go value.
func fromValue(value *qdrant.Value) any {
	switch v := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(v.ListValue.GetValues()))
		for _, item := range v.ListValue.GetValues() {
			list = append(list, fromValue(item))
		}
		return list
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(v.StructValue.GetFields()))
		for k, f := range v.StructValue.GetFields() {
			m[k] = fromValue(f)
		}
		return m
	default:
		return nil
	}
}
