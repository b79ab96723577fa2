package store

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

// qdrantSDK adapts the Qdrant Go client to QdrantClient.
type qdrantSDK struct {
	c *qdrant.Client
}

// DialQdrant connects with the Qdrant Go client.
func DialQdrant(_ context.Context, cfg QdrantConfig) (QdrantClient, error) {
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, err
	}
	return &qdrantSDK{c: c}, nil
}

func (s *qdrantSDK) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.c.CollectionExists(ctx, name)
}

func (s *qdrantSDK) DeleteCollection(ctx context.Context, name string) error {
	return s.c.DeleteCollection(ctx, name)
}

func (s *qdrantSDK) CreateCollection(ctx context.Context, name string, dim int, metric embedding.Metric) error {
	return s.c.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrantDistance(metric),
		}),
	})
}

func (s *qdrantSDK) Upsert(ctx context.Context, name string, points []Row) error {
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := qdrant.TryValueMap(p.Metadata.Map())
		if err != nil {
			return fmt.Errorf("build payload: %w", err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}
	_, err := s.c.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	return err
}

func (s *qdrantSDK) Query(ctx context.Context, name string, query embedding.Vector, topK int) ([]domainstore.Result, error) {
	points, err := s.c.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	out := make([]domainstore.Result, 0, len(points))
	for _, p := range points {
		meta := make(map[string]any, len(p.GetPayload()))
		for k, v := range p.GetPayload() {
			meta[k] = payloadValue(v)
		}
		out = append(out, domainstore.NewResult(int64(p.GetId().GetNum()), float64(p.GetScore()), meta))
	}
	return out, nil
}

func (s *qdrantSDK) Count(ctx context.Context, name string) (int, error) {
	n, err := s.c.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *qdrantSDK) Close() error {
	return s.c.Close()
}

func qdrantDistance(m embedding.Metric) qdrant.Distance {
	if m == embedding.MetricDot {
		return qdrant.Distance_Dot
	}
	return qdrant.Distance_Cosine
}

func payloadValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}
