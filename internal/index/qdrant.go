package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant collection.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	VectorSize uint64
	APIKey     string
	UseTLS     bool
}

// Qdrant stores vectors in a Qdrant collection over gRPC. Point IDs must be
// UUIDs, so document IDs are mapped to deterministic name-based UUIDs and the
// original ID travels in the payload.
type Qdrant struct {
	client     *qdrant.Client
	collection string
}

// NewQdrant connects to the server and ensures the collection exists with
// cosine distance.
func NewQdrant(ctx context.Context, cfg QdrantConfig) (*Qdrant, error) {
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("index: qdrant collection name required")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("index: qdrant vector size required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant client: %w", err)
	}

	q := &Qdrant{client: client, collection: cfg.Collection}
	if err := q.ensureCollection(ctx, cfg.VectorSize); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context, size uint64) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("index: qdrant check collection %q: %w", q.collection, err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("index: qdrant create collection %q: %w", q.collection, err)
	}
	return nil
}

func (q *Qdrant) Name() string { return "qdrant" }

func (q *Qdrant) Upsert(ctx context.Context, entries []Entry) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("index: nil qdrant index")
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("index: qdrant upsert with empty id")
		}
		payload := map[string]any{"doc_id": e.ID}
		for k, v := range e.Fields {
			if k != "doc_id" {
				payload[k] = v
			}
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(e.ID)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("index: qdrant upsert: %w", err)
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if q == nil || q.client == nil {
		return nil, fmt.Errorf("index: nil qdrant index")
	}
	if k <= 0 {
		return nil, nil
	}

	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant search: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id := ""
		if p := r.Payload; p != nil {
			if v, ok := p["doc_id"]; ok {
				id = v.GetStringValue()
			}
		}
		if id == "" {
			id = r.Id.GetUuid()
		}
		hits = append(hits, Hit{ID: id, Score: r.Score})
	}
	return hits, nil
}

// Delete removes documents from the collection by their original IDs.
func (q *Qdrant) Delete(ctx context.Context, ids []string) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("index: nil qdrant index")
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointID(id)))
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("index: qdrant delete: %w", err)
	}
	return nil
}

func (q *Qdrant) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}

// pointID derives a stable UUID from a document ID so re-ingesting the same
// corpus overwrites points instead of duplicating them.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}
