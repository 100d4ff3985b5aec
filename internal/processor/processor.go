package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/internal/metrics"
	"github.com/anvik/docstream/internal/rag/embedding"
	"github.com/anvik/docstream/internal/rag/vectorDB"
	"github.com/anvik/docstream/pkg/logger_i"
)

// Delivery is one received queue message. The wrapper exists so the ack
// decision logic can be exercised without a broker.
type Delivery interface {
	Data() []byte
	Deliveries() int
	Ack() error
	Nak(delay time.Duration) error
}

// Quarantiner moves a message that will never succeed onto the inspection
// subject instead of letting it loop forever.
type Quarantiner interface {
	Quarantine(ctx context.Context, data []byte, reason string) error
}

// Service consumes document.process events. Processing is a pure function of
// the event payload: delivery is at-least-once and every step must tolerate
// replay, so the vector write is an upsert keyed by document id and the row
// update is a plain set to Processed.
type Service interface {
	Process(ctx context.Context, event docmodel.DocumentEvent) error
	HandleDelivery(ctx context.Context, msg Delivery)
}

type service struct {
	blobs      docmodel.BlobStore
	metadata   docmodel.MetadataStore
	vectorDB   vectorDB.DataProcessor
	embedder   embedding.Embedder
	quarantine Quarantiner
	logger     *logger_i.Logger
}

func NewService(blobs docmodel.BlobStore, metadata docmodel.MetadataStore, vector vectorDB.DataProcessor, em embedding.Embedder, quarantine Quarantiner) Service {
	return &service{
		blobs:      blobs,
		metadata:   metadata,
		vectorDB:   vector,
		embedder:   em,
		quarantine: quarantine,
		logger:     logger_i.NewLogger("Processor"),
	}
}

func (s *service) Process(ctx context.Context, event docmodel.DocumentEvent) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "docId", event.Id)
	log.Debug("Processing document", "filename", event.Filename)

	start := time.Now()
	content, err := s.blobs.Fetch(ctx, event.Id)
	if err != nil {
		return fmt.Errorf("fetch blob: %w", err)
	}
	metrics.CaptureExecutionMetrics("blob_get", time.Since(start))

	text, err := extractText(event.Filename, content)
	if err != nil {
		return fmt.Errorf("extract %s: %w", event.Filename, err)
	}
	bounded := runePrefix(text, config.ExtractCharLimit)

	start = time.Now()
	vector, err := s.embedder.GetEmbedding(ctx, bounded)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))

	start = time.Now()
	if err := s.vectorDB.UpsertDocument(ctx, event.Id, event.Filename, bounded, vector); err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}
	metrics.CaptureExecutionMetrics("vector_upsert", time.Since(start))

	// Last step: the row flips to Processed only after the vector is durable.
	preview := runePrefix(bounded, config.TextPreviewLimit)
	if err := s.metadata.MarkProcessed(ctx, event.Id, preview); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	log.Info("Processed document")
	return nil
}

// HandleDelivery decides the fate of one delivery: ack on success, quarantine
// terminal failures and exhausted retries, nak everything transient.
func (s *service) HandleDelivery(ctx context.Context, msg Delivery) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	var event docmodel.DocumentEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		log.Error("Malformed document event", "error", err)
		s.quarantineAndAck(ctx, msg, "malformed event: "+err.Error())
		metrics.CaptureProcessingOutcome("malformed")
		return
	}
	log = log.With("docId", event.Id)

	err := s.Process(ctx, event)
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			// The event will come back; processing is idempotent.
			log.Error("Ack failed after successful processing", "error", ackErr)
		}
		metrics.CaptureProcessingOutcome("processed")

	case docmodel.IsTerminal(err):
		log.Error("Terminal processing failure", "error", err)
		s.quarantineAndAck(ctx, msg, err.Error())
		metrics.CaptureProcessingOutcome("terminal")

	case msg.Deliveries() >= config.MaxDeliverAttempts:
		log.Error("Retries exhausted", "deliveries", msg.Deliveries(), "error", err)
		s.quarantineAndAck(ctx, msg, err.Error())
		metrics.CaptureProcessingOutcome("exhausted")

	default:
		log.Warn("Transient processing failure, requeueing", "deliveries", msg.Deliveries(), "error", err)
		if nakErr := msg.Nak(config.RedeliveryDelay); nakErr != nil {
			log.Error("Nak failed", "error", nakErr)
		}
		metrics.CaptureProcessingOutcome("requeued")
	}
}

func (s *service) quarantineAndAck(ctx context.Context, msg Delivery, reason string) {
	if err := s.quarantine.Quarantine(ctx, msg.Data(), reason); err != nil {
		// Keep the message in the stream rather than dropping it.
		s.logger.Error("Quarantine publish failed, leaving message for redelivery", "error", err)
		return
	}
	if err := msg.Ack(); err != nil {
		s.logger.Error("Ack failed after quarantine", "error", err)
	}
}
