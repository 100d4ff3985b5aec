// @title           Document Pipeline API
// @version         1.0
// @description     Asynchronous document ingestion and vector search
// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/data/blobstore"
	"github.com/anvik/docstream/internal/data/metastore"
	"github.com/anvik/docstream/internal/data/resultcache"
	"github.com/anvik/docstream/internal/handlers"
	"github.com/anvik/docstream/internal/ingest"
	"github.com/anvik/docstream/internal/queue"
	"github.com/anvik/docstream/internal/rag/embedding"
	"github.com/anvik/docstream/internal/rag/embedding/googleEmbedding"
	"github.com/anvik/docstream/internal/rag/embedding/openaiEmbedding"
	"github.com/anvik/docstream/internal/rag/vectorDB/qdrantDB"
	"github.com/anvik/docstream/internal/search"
	"github.com/anvik/docstream/internal/server"
	"github.com/anvik/docstream/internal/status"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/joho/godotenv"
)

var listenAddr string

func main() {
	logger_i.Init()
	logger := logger_i.NewLogger("main")

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, relying on the environment")
	}

	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	metadata := metastore.GetMetadataStore(serviceContext)
	blobs := blobstore.GetBlobStore(serviceContext)
	cache := resultcache.GetResultCache(serviceContext)
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

	producer := ingest.NewService(blobs, metadata, queueClient)
	searcher := search.NewService(cache, vectorDB, embedder)

	statusService := status.NewService()
	statusService.AddConnectionProbe("nats", func(ctx context.Context) error {
		return probeQueue(queueClient)
	})
	statusService.AddHealthProbe("postgresql", metadata.Probe)
	statusService.AddHealthProbe("qdrant", vectorDB.Probe)
	statusService.AddHealthProbe("storage", blobs.Probe)
	statusService.AddHealthProbe("cache", cache.Probe)

	handlers.InitHandlers(producer, searcher, metadata, statusService)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

func selectEmbedder(ctx context.Context) embedding.Embedder {
	provider := config.EnvOr("EMBEDDING_PROVIDER", config.EmbeddingProvider)
	if provider == "openai" {
		return openaiEmbedding.GetOpenAIEmbeddingClient(config.OpenAIEmbeddingModel, os.Getenv("OPENAI_API_KEY"))
	}
	return googleEmbedding.GetGoogleEmbeddingClient(ctx, config.GoogleEmbeddingModel, os.Getenv("GOOGLE_API_KEY"))
}

var errDisconnected = errors.New("nats connection is down")

func probeQueue(client *queue.Client) error {
	if !client.Probe() {
		return errDisconnected
	}
	return nil
}
