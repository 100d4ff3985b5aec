package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/internal/ingest"
	"github.com/google/uuid"
)

type MockBlobStore struct {
	OnStore func(ctx context.Context, id string, content []byte) error
	Stored  map[string][]byte
}

func (m *MockBlobStore) Store(ctx context.Context, id string, content []byte) error {
	if m.OnStore != nil {
		if err := m.OnStore(ctx, id, content); err != nil {
			return err
		}
	}
	if m.Stored == nil {
		m.Stored = make(map[string][]byte)
	}
	m.Stored[id] = content
	return nil
}

func (m *MockBlobStore) Fetch(ctx context.Context, id string) ([]byte, error) {
	content, ok := m.Stored[id]
	if !ok {
		return nil, docmodel.ErrBlobNotFound
	}
	return content, nil
}

type MockMetadataStore struct {
	OnInsert func(ctx context.Context, id string, filename string) error
	Rows     map[string]docmodel.Document
}

func (m *MockMetadataStore) Insert(ctx context.Context, id string, filename string) error {
	if m.OnInsert != nil {
		if err := m.OnInsert(ctx, id, filename); err != nil {
			return err
		}
	}
	if m.Rows == nil {
		m.Rows = make(map[string]docmodel.Document)
	}
	m.Rows[id] = docmodel.Document{Id: id, Filename: filename, State: docmodel.StatePending}
	return nil
}

func (m *MockMetadataStore) MarkProcessed(ctx context.Context, id string, preview string) error {
	return nil
}

func (m *MockMetadataStore) ListRecent(ctx context.Context, limit int) ([]docmodel.Document, error) {
	return nil, nil
}

type MockPublisher struct {
	OnPublish func(ctx context.Context, event docmodel.DocumentEvent) error
	Published []docmodel.DocumentEvent
}

func (m *MockPublisher) PublishDocumentEvent(ctx context.Context, event docmodel.DocumentEvent) error {
	if m.OnPublish != nil {
		if err := m.OnPublish(ctx, event); err != nil {
			return err
		}
	}
	m.Published = append(m.Published, event)
	return nil
}

func TestUpload_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		setupMocks  func(b *MockBlobStore, m *MockMetadataStore, p *MockPublisher)
		wantErr     bool
		wantRows    int
		wantEvents  int
		wantBlobs   int
	}{
		{
			name:       "Success_Queues_Document",
			setupMocks: func(b *MockBlobStore, m *MockMetadataStore, p *MockPublisher) {},
			wantErr:    false,
			wantRows:   1,
			wantEvents: 1,
			wantBlobs:  1,
		},
		{
			name: "Blob_Failure_Fails_Closed",
			setupMocks: func(b *MockBlobStore, m *MockMetadataStore, p *MockPublisher) {
				b.OnStore = func(ctx context.Context, id string, content []byte) error {
					return errors.New("storage unreachable")
				}
			},
			wantErr:    true,
			wantRows:   0,
			wantEvents: 0,
			wantBlobs:  0,
		},
		{
			name: "Insert_Failure_Publishes_Nothing",
			setupMocks: func(b *MockBlobStore, m *MockMetadataStore, p *MockPublisher) {
				m.OnInsert = func(ctx context.Context, id string, filename string) error {
					return errors.New("db timeout")
				}
			},
			wantErr:    true,
			wantRows:   0,
			wantEvents: 0,
			wantBlobs:  1, //orphan blob is acceptable
		},
		{
			name: "Publish_Failure_Surfaces_Error",
			setupMocks: func(b *MockBlobStore, m *MockMetadataStore, p *MockPublisher) {
				p.OnPublish = func(ctx context.Context, event docmodel.DocumentEvent) error {
					return errors.New("broker down")
				}
			},
			wantErr:    true,
			wantRows:   1,
			wantEvents: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mBlob := &MockBlobStore{}
			mMeta := &MockMetadataStore{}
			mPub := &MockPublisher{}
			tt.setupMocks(mBlob, mMeta, mPub)

			s := ingest.NewService(mBlob, mMeta, mPub)
			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")

			id, err := s.Upload(ctx, "a.pdf", []byte("0123456789"))

			if tt.wantErr != (err != nil) {
				t.Fatalf("Upload error got %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if _, parseErr := uuid.Parse(id); parseErr != nil {
					t.Errorf("Upload returned a non-uuid id %q", id)
				}
			}
			if got := len(mMeta.Rows); got != tt.wantRows {
				t.Errorf("Rows got %d, want %d", got, tt.wantRows)
			}
			if got := len(mPub.Published); got != tt.wantEvents {
				t.Errorf("Events got %d, want %d", got, tt.wantEvents)
			}
			if tt.name != "Publish_Failure_Surfaces_Error" {
				if got := len(mBlob.Stored); got != tt.wantBlobs {
					t.Errorf("Blobs got %d, want %d", got, tt.wantBlobs)
				}
			}
		})
	}
}

// A row must never exist without its blob, no matter which write fails.
func TestUpload_RowImpliesBlob(t *testing.T) {
	failures := []struct {
		name  string
		setup func(b *MockBlobStore, m *MockMetadataStore)
	}{
		{name: "No_Failures", setup: func(b *MockBlobStore, m *MockMetadataStore) {}},
		{
			name: "Blob_Write_Fails",
			setup: func(b *MockBlobStore, m *MockMetadataStore) {
				b.OnStore = func(ctx context.Context, id string, content []byte) error {
					return errors.New("write failed")
				}
			},
		},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			mBlob := &MockBlobStore{}
			mMeta := &MockMetadataStore{}
			tt.setup(mBlob, mMeta)

			s := ingest.NewService(mBlob, mMeta, &MockPublisher{})
			_, _ = s.Upload(context.Background(), "report.pdf", []byte("content"))

			for id := range mMeta.Rows {
				if _, ok := mBlob.Stored[id]; !ok {
					t.Errorf("Row %s exists without a blob", id)
				}
			}
		})
	}
}

func TestUpload_RowIsPending(t *testing.T) {
	mBlob := &MockBlobStore{}
	mMeta := &MockMetadataStore{}

	s := ingest.NewService(mBlob, mMeta, &MockPublisher{})
	id, err := s.Upload(context.Background(), "a.pdf", []byte("0123456789"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	row, ok := mMeta.Rows[id]
	if !ok {
		t.Fatal("No row created for uploaded document")
	}
	if row.State != docmodel.StatePending {
		t.Errorf("State got %s, want %s", row.State, docmodel.StatePending)
	}
}
