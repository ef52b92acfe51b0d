// Package qdrant adapts the Qdrant vector database to the search and
// ingestion use cases.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/catalogix/prodsearch/internal/domain"
	"github.com/catalogix/prodsearch/internal/domain/search/filter"
	"github.com/catalogix/prodsearch/internal/domain/search/result"
)

// scanBatchSize is the scroll page size when reading the full corpus back.
const scanBatchSize = 1000

// Store is a product embedding store backed by a Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
	logger     *zap.Logger
}

// Config holds the Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorSize int
	Logger     *zap.Logger
}

// New connects to Qdrant and wraps the given collection.
func New(cfg *Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return &Store{
		client:     client,
		collection: cfg.Collection,
		vectorSize: uint64(cfg.VectorSize),
		logger:     cfg.Logger,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("collection exists check: %v: %w", err, domain.ErrVectorStoreError)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %v: %w", s.collection, err, domain.ErrVectorStoreError)
	}
	s.logger.Info("created collection", zap.String("collection", s.collection))
	return nil
}

// Upsert writes documents with their vectors, replacing existing points.
// Point IDs are derived deterministically from product codes, so re-indexing
// the same product overwrites its previous point.
func (s *Store) Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents/vectors length mismatch: %d != %d", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(doc.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(toPayloadMap(doc)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %v: %w", len(points), err, domain.ErrVectorStoreError)
	}
	return nil
}

// Search runs a filtered KNN query and returns hits keyed by product code.
func (s *Store) Search(ctx context.Context, vector []float32, filters filter.Expression, limit int) ([]result.Hit, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         buildFilter(filters),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %v: %w", err, domain.ErrVectorStoreError)
	}

	hits := make([]result.Hit, 0, len(points))
	for _, p := range points {
		payload, _ := fromPayloadMap(p.GetPayload())
		if payload.ProductCode == "" {
			continue
		}
		hits = append(hits, result.NewHit(payload.ProductCode, float64(p.GetScore()), payload))
	}
	return hits, nil
}

// Scan reads the whole corpus back, returning the stored embed text per
// product. The keyword index is rebuilt from this.
func (s *Store) Scan(ctx context.Context) ([]domain.Document, error) {
	var (
		docs   []domain.Document
		offset *qdrant.PointId
	)
	for {
		resp, err := s.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          qdrant.PtrOf(uint32(scanBatchSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll points: %v: %w", err, domain.ErrVectorStoreError)
		}

		for _, p := range resp.GetResult() {
			payload, text := fromPayloadMap(p.GetPayload())
			if payload.ProductCode == "" || text == "" {
				continue
			}
			docs = append(docs, domain.Document{ID: payload.ProductCode, Text: text, Payload: payload})
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	return docs, nil
}

// Count returns the exact number of stored points.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %v: %w", err, domain.ErrVectorStoreError)
	}
	return n, nil
}

// Ping checks store availability.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error { return s.client.Close() }

// pointID derives a stable UUID for a product code. Qdrant point IDs must be
// UUIDs or integers.
func pointID(productCode string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(productCode)).String()
}
