package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/anvik/docstream/internal/adapter/utils"
	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/internal/metrics"
	"github.com/anvik/docstream/pkg/logger_i"
)

// Service is the upload producer. The write order is the invariant: blob
// first, then the metadata row, then the queue event. A consumer that
// receives the event can therefore always find both the blob and the row.
type Service interface {
	Upload(ctx context.Context, filename string, content []byte) (string, error)
}

type service struct {
	blobs     docmodel.BlobStore
	metadata  docmodel.MetadataStore
	publisher docmodel.EventPublisher
	logger    *logger_i.Logger
}

func NewService(blobs docmodel.BlobStore, metadata docmodel.MetadataStore, publisher docmodel.EventPublisher) Service {
	return &service{
		blobs:     blobs,
		metadata:  metadata,
		publisher: publisher,
		logger:    logger_i.NewLogger("IngestProducer"),
	}
}

func (s *service) Upload(ctx context.Context, filename string, content []byte) (string, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "filename", filename)

	id := utils.GetNewUUID()
	log.Debug("Uploading document", "docId", id, "size", len(content))

	start := time.Now()
	if err := s.blobs.Store(ctx, id, content); err != nil {
		// Fail closed: no blob means no row and no event.
		return "", fmt.Errorf("store blob: %w", err)
	}
	metrics.CaptureExecutionMetrics("blob_put", time.Since(start))

	if err := s.metadata.Insert(ctx, id, filename); err != nil {
		// The orphan blob is ignorable; an event without a row would not be.
		log.Error("Metadata insert failed after blob write", "docId", id, "error", err)
		return "", fmt.Errorf("insert metadata: %w", err)
	}

	event := docmodel.DocumentEvent{Id: id, Filename: filename}
	if err := s.publisher.PublishDocumentEvent(ctx, event); err != nil {
		// The row stays Pending with no event in flight, safe to re-upload.
		log.Error("Publish failed after durable writes", "docId", id, "error", err)
		return "", fmt.Errorf("publish document event: %w", err)
	}

	metrics.IncrementDocumentsUploaded()
	log.Info("Document queued for processing", "docId", id)
	return id, nil
}
