package embedding

import "context"

// Embedder turns text into a fixed-dimension vector. The same implementation
// must serve ingestion and query time, otherwise nearest-neighbor scores are
// meaningless.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}
