package qdrantDB

import (
	"context"
	"strconv"
	"sync"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var (
	logger         *logger_i.Logger
	instance       *qdrant.Client
	once           sync.Once
	dimension      = uint64(config.EmbeddingDimension)
	collectionName = config.VectorCollectionName
)

type ClientHolder struct {
	QObj *qdrant.Client
}

func GetQdrantClient(ctx context.Context) *ClientHolder {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient(ctx)
		if res != nil {
			instance = res
			go closeQdrant(ctx, instance)
		}
	})

	if instance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: instance,
	}
}

func newClient(ctx context.Context) *qdrant.Client {
	host := config.EnvOr("QDRANT_HOST", config.QdrantHost)
	port, err := strconv.Atoi(config.EnvOr("QDRANT_PORT", strconv.Itoa(config.QdrantGrpcPort)))
	if err != nil {
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		APIKey:   config.EnvOr("QDRANT_API_KEY", ""),
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate qdrant client", "error", err)
		return nil
	}

	if err := createCollection(ctx, client); err != nil {
		logger.Error("could not create collection", "collectionName", collectionName, "error", err)
		return nil
	}

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	if err := qi.Close(); err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
}

func createCollection(ctx context.Context, client *qdrant.Client) error {
	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// UpsertDocument writes exactly one point per document id. Redelivering the
// same event repeats the upsert and leaves the collection unchanged, last
// write wins on payload.
func (db *ClientHolder) UpsertDocument(ctx context.Context, id string, filename string, text string, vector []float32) error {
	upsertCtx, cancel := context.WithTimeout(ctx, config.QdrantRequestTimeout)
	defer cancel()

	_, err := db.QObj.Upsert(upsertCtx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":     text,
					"filename": filename,
					"doc_id":   id,
				}),
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		logger.Error("Error upserting document point", "docId", id, "error", err)
	}
	return err
}

func (db *ClientHolder) Search(ctx context.Context, vector []float32) ([]docmodel.SearchHit, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	queryCtx, cancel := context.WithTimeout(ctx, config.QdrantRequestTimeout)
	defer cancel()

	result, err := db.QObj.Query(queryCtx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(config.SearchResultLimit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant", "error", err)
		return nil, err
	}

	hits := make([]docmodel.SearchHit, 0, len(result))
	for _, point := range result {
		hits = append(hits, docmodel.SearchHit{
			Id:    point.Id.GetUuid(),
			Score: point.Score,
			Payload: docmodel.HitPayload{
				Text:     point.Payload["text"].GetStringValue(),
				Filename: point.Payload["filename"].GetStringValue(),
				DocId:    point.Payload["doc_id"].GetStringValue(),
			},
		})
	}

	loggr.Debug("Vector search complete", "hits", len(hits))
	return hits, nil
}

func (db *ClientHolder) Probe(ctx context.Context) error {
	_, err := db.QObj.HealthCheck(ctx)
	return err
}
