package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
)

const milvusMaxVarChar = 4096

// milvusSDK adapts the Milvus Go SDK to MilvusClient.
type milvusSDK struct {
	c client.Client
}

// DialMilvus connects with the Milvus Go SDK.
func DialMilvus(ctx context.Context, cfg MilvusConfig) (MilvusClient, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		APIKey:   cfg.Token,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, err
	}
	return &milvusSDK{c: c}, nil
}

func (s *milvusSDK) HasCollection(ctx context.Context, name string) (bool, error) {
	return s.c.HasCollection(ctx, name)
}

func (s *milvusSDK) DropCollection(ctx context.Context, name string) error {
	return s.c.DropCollection(ctx, name)
}

func (s *milvusSDK) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	schema := entity.NewSchema().
		WithName(spec.Name).
		WithDescription("video clip embeddings").
		WithAutoID(spec.AutoID).
		WithDynamicFieldEnabled(true).
		WithField(entity.NewField().
			WithName(milvusIDField).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(spec.AutoID)).
		WithField(entity.NewField().
			WithName(milvusVectorField).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(spec.Dim)))
	for _, key := range []string{embedding.KeyVideo, embedding.KeySentence, embedding.KeyDataset, embedding.KeyClassName} {
		schema.WithField(entity.NewField().
			WithName(key).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(milvusMaxVarChar))
	}
	for _, key := range []string{embedding.KeyStartFrame, embedding.KeyEndFrame} {
		schema.WithField(entity.NewField().
			WithName(key).
			WithDataType(entity.FieldTypeInt64))
	}

	if err := s.c.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return err
	}

	idx, err := entity.NewIndexAUTOINDEX(milvusMetric(spec.Metric))
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := s.c.CreateIndex(ctx, spec.Name, milvusVectorField, idx, false); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.c.LoadCollection(ctx, spec.Name, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *milvusSDK) Insert(ctx context.Context, name string, autoID bool, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	n := len(rows)
	dim := len(rows[0].Vector)
	ids := make([]int64, n)
	vectors := make([][]float32, n)
	videos := make([]string, n)
	sentences := make([]string, n)
	datasets := make([]string, n)
	classes := make([]string, n)
	starts := make([]int64, n)
	ends := make([]int64, n)
	for i, r := range rows {
		ids[i] = r.ID
		vectors[i] = r.Vector
		videos[i] = r.Metadata.Video
		sentences[i] = r.Metadata.Sentence
		datasets[i] = r.Metadata.Dataset
		classes[i] = r.Metadata.ClassName
		starts[i] = int64(r.Metadata.StartFrame)
		ends[i] = int64(r.Metadata.EndFrame)
	}

	columns := []entity.Column{
		entity.NewColumnFloatVector(milvusVectorField, dim, vectors),
		entity.NewColumnVarChar(embedding.KeyVideo, videos),
		entity.NewColumnInt64(embedding.KeyStartFrame, starts),
		entity.NewColumnInt64(embedding.KeyEndFrame, ends),
		entity.NewColumnVarChar(embedding.KeySentence, sentences),
		entity.NewColumnVarChar(embedding.KeyDataset, datasets),
		entity.NewColumnVarChar(embedding.KeyClassName, classes),
	}
	if !autoID {
		columns = append([]entity.Column{entity.NewColumnInt64(milvusIDField, ids)}, columns...)
	}

	_, err := s.c.Insert(ctx, name, "", columns...)
	return err
}

func (s *milvusSDK) Flush(ctx context.Context, name string) error {
	return s.c.Flush(ctx, name, false)
}

func (s *milvusSDK) Search(ctx context.Context, name string, query embedding.Vector, metric embedding.Metric, topK int) ([]domainstore.Result, error) {
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	outFields := embedding.Keys()
	results, err := s.c.Search(ctx, name, nil, "", outFields,
		[]entity.Vector{entity.FloatVector(query)}, milvusVectorField, milvusMetric(metric), topK, sp)
	if err != nil {
		return nil, err
	}

	var out []domainstore.Result
	for _, r := range results {
		for i := 0; i < r.ResultCount; i++ {
			id, err := r.IDs.GetAsInt64(i)
			if err != nil {
				return nil, fmt.Errorf("read id: %w", err)
			}
			meta := make(map[string]any, len(r.Fields))
			for _, col := range r.Fields {
				v, err := col.Get(i)
				if err != nil {
					continue
				}
				meta[col.Name()] = v
			}
			out = append(out, domainstore.NewResult(id, float64(r.Scores[i]), meta))
		}
	}
	return out, nil
}

func (s *milvusSDK) Count(ctx context.Context, name string) (int, error) {
	stats, err := s.c.GetCollectionStatistics(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("parse row count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

func (s *milvusSDK) Close() error {
	return s.c.Close()
}

func milvusMetric(m embedding.Metric) entity.MetricType {
	if m == embedding.MetricDot {
		return entity.IP
	}
	return entity.COSINE
}
