package vectorDB

import (
	"context"

	"github.com/anvik/docstream/internal/domain/docmodel"
)

type DataProcessor interface {
	UpsertDocument(ctx context.Context, id string, filename string, text string, vector []float32) error
	Search(ctx context.Context, vector []float32) ([]docmodel.SearchHit, error)
	Probe(ctx context.Context) error
}
