package docmodel

import (
	"context"
	"time"
)

type ProcessingState string

const (
	StatePending   ProcessingState = "Pending"
	StateProcessed ProcessingState = "Processed"
)

// Document is the one row per upload in the metadata store. Id is the join
// key across the blob store, the metadata store and the vector index.
type Document struct {
	Id          string          `json:"id"`
	Filename    string          `json:"filename"`
	UploadDate  time.Time       `json:"upload_date"`
	State       ProcessingState `json:"processed"`
	TextPreview string          `json:"text_preview,omitempty"`
}

func (d Document) Processed() bool {
	return d.State == StateProcessed
}

// DocumentEvent is the queue wire format, one message per uploaded document.
// Delivery is at-least-once, so everything keyed off it must tolerate replay.
type DocumentEvent struct {
	Id       string `json:"id"`
	Filename string `json:"filename"`
}

type HitPayload struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	DocId    string `json:"doc_id"`
}

type SearchHit struct {
	Id      string     `json:"id"`
	Score   float32    `json:"score"`
	Payload HitPayload `json:"payload"`
}

// SearchResult lives only in the result cache; results keep the index order.
type SearchResult struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

type BlobStore interface {
	Store(ctx context.Context, id string, content []byte) error
	Fetch(ctx context.Context, id string) ([]byte, error)
}

type MetadataStore interface {
	Insert(ctx context.Context, id string, filename string) error
	MarkProcessed(ctx context.Context, id string, preview string) error
	ListRecent(ctx context.Context, limit int) ([]Document, error)
}

type VectorIndex interface {
	UpsertDocument(ctx context.Context, id string, filename string, text string, vector []float32) error
	Search(ctx context.Context, vector []float32) ([]SearchHit, error)
}

type EventPublisher interface {
	PublishDocumentEvent(ctx context.Context, event DocumentEvent) error
}

type ResultCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	IsNil(err error) bool
}
