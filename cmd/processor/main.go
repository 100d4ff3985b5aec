package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/data/blobstore"
	"github.com/anvik/docstream/internal/data/metastore"
	"github.com/anvik/docstream/internal/processor"
	"github.com/anvik/docstream/internal/queue"
	"github.com/anvik/docstream/internal/rag/embedding"
	"github.com/anvik/docstream/internal/rag/embedding/googleEmbedding"
	"github.com/anvik/docstream/internal/rag/embedding/openaiEmbedding"
	"github.com/anvik/docstream/internal/rag/vectorDB/qdrantDB"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger_i.Init()
	logger := logger_i.NewLogger("processor-main")

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, relying on the environment")
	}

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	metadata := metastore.GetMetadataStore(serviceContext)
	blobs := blobstore.GetBlobStore(serviceContext)
	queueClient := queue.GetQueueClient(serviceContext)
	vectorDB := qdrantDB.GetQdrantClient(serviceContext)
	embedder := selectEmbedder(serviceContext)

	if metadata == nil || blobs == nil || queueClient == nil || vectorDB == nil || embedder == nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services",
			"Metadata", metadata != nil,
			"Blobs", blobs != nil,
			"Queue", queueClient != nil,
			"VectorDB", vectorDB != nil,
			"Embedder", embedder != nil)
		return
	}

	subscription, err := queueClient.Subscribe()
	if err != nil {
		logger.Error("Could not subscribe to processing subject", "error", err)
		return
	}

	service := processor.NewService(blobs, metadata, vectorDB, embedder, queueClient)

	// Separate cancellation for the fetch loop so in-flight work drains
	// before the store clients close.
	fetchContext, stopFetching := context.WithCancel(context.Background())
	var workerWaitGroup sync.WaitGroup
	processor.StartWorkerPool(fetchContext, subscription, service, &workerWaitGroup)

	//metrics endpoint for scraping
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(config.ProcessorMetricsAddr, mux); err != nil {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()

	logger.Info("Processor started, waiting for documents")

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	<-gracefulShutdown

	logger.Info("Processor shutting down")
	stopFetching()
	workerWaitGroup.Wait()
	closeExternalServices()
	logger.Info("Processor stopped")
}

func selectEmbedder(ctx context.Context) embedding.Embedder {
	provider := config.EnvOr("EMBEDDING_PROVIDER", config.EmbeddingProvider)
	if provider == "openai" {
		return openaiEmbedding.GetOpenAIEmbeddingClient(config.OpenAIEmbeddingModel, os.Getenv("OPENAI_API_KEY"))
	}
	return googleEmbedding.GetGoogleEmbeddingClient(ctx, config.GoogleEmbeddingModel, os.Getenv("GOOGLE_API_KEY"))
}
