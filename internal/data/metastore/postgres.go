package metastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	instance *Store
	once     sync.Once
	logger   *logger_i.Logger
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	filename VARCHAR(255),
	upload_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	processed BOOLEAN DEFAULT FALSE,
	text_preview TEXT
)`

// Store is the relational record per document. The processed flag and
// text_preview are written only by the consumer; everything else only at
// upload time.
type Store struct {
	pool *pgxpool.Pool
}

func GetMetadataStore(ctx context.Context) *Store {
	once.Do(func() {
		logger = logger_i.NewLogger("MetadataStore")
		instance = newStore(ctx)
	})
	return instance
}

func newStore(ctx context.Context) *Store {
	dsn := config.EnvOr("POSTGRES_DSN", config.PostgresDSN)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Error("could not create pgx pool", "error", err)
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("PostgreSQL is offline", "error", err.Error())
		return nil
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		logger.Error("could not ensure documents table", "error", err)
		return nil
	}

	logger.Info("Metadata store connected")
	go closeOnDone(ctx, pool)
	return &Store{pool: pool}
}

func closeOnDone(ctx context.Context, pool *pgxpool.Pool) {
	<-ctx.Done()
	logger.Info("Closing metadata store")
	pool.Close()
}

func (s *Store) Insert(ctx context.Context, id string, filename string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, filename) VALUES ($1, $2)`, id, filename)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", id, err)
	}
	return nil
}

// MarkProcessed is a plain set, not an append, so replaying the same event
// converges on the same row.
func (s *Store) MarkProcessed(ctx context.Context, id string, preview string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET processed = TRUE, text_preview = $1 WHERE id = $2`, preview, id)
	if err != nil {
		return fmt.Errorf("mark document %s processed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, docmodel.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]docmodel.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, upload_date, processed
		 FROM documents
		 ORDER BY upload_date DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var documents []docmodel.Document
	for rows.Next() {
		var (
			doc       docmodel.Document
			processed bool
		)
		if err := rows.Scan(&doc.Id, &doc.Filename, &doc.UploadDate, &processed); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		doc.State = docmodel.StatePending
		if processed {
			doc.State = docmodel.StateProcessed
		}
		documents = append(documents, doc)
	}
	return documents, rows.Err()
}

func (s *Store) Probe(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
