package processor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/internal/processor"
)

type MockBlobStore struct {
	OnFetch func(ctx context.Context, id string) ([]byte, error)
}

func (m *MockBlobStore) Store(ctx context.Context, id string, content []byte) error {
	return nil
}

func (m *MockBlobStore) Fetch(ctx context.Context, id string) ([]byte, error) {
	if m.OnFetch != nil {
		return m.OnFetch(ctx, id)
	}
	return []byte("default document text"), nil
}

type MockMetadataStore struct {
	OnMarkProcessed func(ctx context.Context, id string, preview string) error
	Marked          map[string]string
}

func (m *MockMetadataStore) Insert(ctx context.Context, id string, filename string) error {
	return nil
}

func (m *MockMetadataStore) MarkProcessed(ctx context.Context, id string, preview string) error {
	if m.OnMarkProcessed != nil {
		if err := m.OnMarkProcessed(ctx, id, preview); err != nil {
			return err
		}
	}
	if m.Marked == nil {
		m.Marked = make(map[string]string)
	}
	m.Marked[id] = preview
	return nil
}

func (m *MockMetadataStore) ListRecent(ctx context.Context, limit int) ([]docmodel.Document, error) {
	return nil, nil
}

type MockVectorDB struct {
	OnUpsert func(ctx context.Context, id string, filename string, text string, vector []float32) error
	Points   map[string]string
	Upserts  int
}

func (m *MockVectorDB) UpsertDocument(ctx context.Context, id string, filename string, text string, vector []float32) error {
	if m.OnUpsert != nil {
		if err := m.OnUpsert(ctx, id, filename, text, vector); err != nil {
			return err
		}
	}
	if m.Points == nil {
		m.Points = make(map[string]string)
	}
	m.Points[id] = text
	m.Upserts++
	return nil
}

func (m *MockVectorDB) Search(ctx context.Context, vector []float32) ([]docmodel.SearchHit, error) {
	return nil, nil
}

func (m *MockVectorDB) Probe(ctx context.Context) error {
	return nil
}

type MockEmbedder struct {
	OnGetEmbedding func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return make([]float32, 384), nil
}

type MockQuarantiner struct {
	OnQuarantine func(ctx context.Context, data []byte, reason string) error
	Reasons      []string
}

func (m *MockQuarantiner) Quarantine(ctx context.Context, data []byte, reason string) error {
	if m.OnQuarantine != nil {
		if err := m.OnQuarantine(ctx, data, reason); err != nil {
			return err
		}
	}
	m.Reasons = append(m.Reasons, reason)
	return nil
}

type FakeDelivery struct {
	Payload   []byte
	Delivered int
	Acked     bool
	Naked     bool
	AckError  error
}

func (f *FakeDelivery) Data() []byte    { return f.Payload }
func (f *FakeDelivery) Deliveries() int { return f.Delivered }
func (f *FakeDelivery) Ack() error {
	if f.AckError != nil {
		return f.AckError
	}
	f.Acked = true
	return nil
}
func (f *FakeDelivery) Nak(delay time.Duration) error {
	f.Naked = true
	return nil
}

func newService(blobs *MockBlobStore, meta *MockMetadataStore, vec *MockVectorDB, em *MockEmbedder, q *MockQuarantiner) processor.Service {
	return processor.NewService(blobs, meta, vec, em, q)
}

func eventBytes(t *testing.T, event docmodel.DocumentEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Could not marshal event: %v", err)
	}
	return data
}

func TestProcess_Success(t *testing.T) {
	mBlob := &MockBlobStore{OnFetch: func(ctx context.Context, id string) ([]byte, error) {
		return []byte("quarterly emissions report"), nil
	}}
	mMeta := &MockMetadataStore{}
	mVec := &MockVectorDB{}

	s := newService(mBlob, mMeta, mVec, &MockEmbedder{}, &MockQuarantiner{})
	event := docmodel.DocumentEvent{Id: "doc-1", Filename: "report.txt"}

	if err := s.Process(context.Background(), event); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if mVec.Points["doc-1"] != "quarterly emissions report" {
		t.Errorf("Vector payload got %q", mVec.Points["doc-1"])
	}
	if mMeta.Marked["doc-1"] != "quarterly emissions report" {
		t.Errorf("Preview got %q", mMeta.Marked["doc-1"])
	}
}

// At-least-once delivery: processing the same event twice must leave one
// vector entry and one processed row, not two.
func TestProcess_Idempotent(t *testing.T) {
	mMeta := &MockMetadataStore{}
	mVec := &MockVectorDB{}

	s := newService(&MockBlobStore{}, mMeta, mVec, &MockEmbedder{}, &MockQuarantiner{})
	event := docmodel.DocumentEvent{Id: "doc-1", Filename: "a.txt"}

	if err := s.Process(context.Background(), event); err != nil {
		t.Fatalf("First Process failed: %v", err)
	}
	if err := s.Process(context.Background(), event); err != nil {
		t.Fatalf("Second Process failed: %v", err)
	}

	if len(mVec.Points) != 1 {
		t.Errorf("Vector entries got %d, want 1", len(mVec.Points))
	}
	if mVec.Upserts != 2 {
		t.Errorf("Upsert calls got %d, want 2", mVec.Upserts)
	}
	if len(mMeta.Marked) != 1 {
		t.Errorf("Processed rows got %d, want 1", len(mMeta.Marked))
	}
}

func TestProcess_NoMarkWithoutUpsert(t *testing.T) {
	mMeta := &MockMetadataStore{}
	mVec := &MockVectorDB{OnUpsert: func(ctx context.Context, id, filename, text string, vector []float32) error {
		return errors.New("qdrant unavailable")
	}}

	s := newService(&MockBlobStore{}, mMeta, mVec, &MockEmbedder{}, &MockQuarantiner{})
	err := s.Process(context.Background(), docmodel.DocumentEvent{Id: "doc-1", Filename: "a.txt"})

	if err == nil {
		t.Fatal("Process should surface the upsert failure")
	}
	if len(mMeta.Marked) != 0 {
		t.Error("Row marked processed although the vector write failed")
	}
}

func TestHandleDelivery_Outcomes(t *testing.T) {
	validEvent := docmodel.DocumentEvent{Id: "doc-1", Filename: "a.txt"}

	tests := []struct {
		name           string
		payload        []byte
		deliveries     int
		fetchErr       error
		wantAck        bool
		wantNak        bool
		wantQuarantine bool
	}{
		{
			name:       "Success_Acks",
			deliveries: 1,
			wantAck:    true,
		},
		{
			name:           "Malformed_Event_Quarantined",
			payload:        []byte("{not json"),
			deliveries:     1,
			wantAck:        true,
			wantQuarantine: true,
		},
		{
			name:           "Terminal_Failure_Quarantined",
			deliveries:     1,
			fetchErr:       docmodel.ErrBlobNotFound,
			wantAck:        true,
			wantQuarantine: true,
		},
		{
			name:       "Transient_Failure_Requeued",
			deliveries: 2,
			fetchErr:   errors.New("connection reset"),
			wantNak:    true,
		},
		{
			name:           "Retries_Exhausted_Quarantined",
			deliveries:     5,
			fetchErr:       errors.New("connection reset"),
			wantAck:        true,
			wantQuarantine: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mBlob := &MockBlobStore{}
			if tt.fetchErr != nil {
				mBlob.OnFetch = func(ctx context.Context, id string) ([]byte, error) {
					return nil, tt.fetchErr
				}
			}
			mQuarantine := &MockQuarantiner{}
			s := newService(mBlob, &MockMetadataStore{}, &MockVectorDB{}, &MockEmbedder{}, mQuarantine)

			payload := tt.payload
			if payload == nil {
				payload = eventBytes(t, validEvent)
			}
			msg := &FakeDelivery{Payload: payload, Delivered: tt.deliveries}

			s.HandleDelivery(context.Background(), msg)

			if msg.Acked != tt.wantAck {
				t.Errorf("Acked got %v, want %v", msg.Acked, tt.wantAck)
			}
			if msg.Naked != tt.wantNak {
				t.Errorf("Naked got %v, want %v", msg.Naked, tt.wantNak)
			}
			if quarantined := len(mQuarantine.Reasons) > 0; quarantined != tt.wantQuarantine {
				t.Errorf("Quarantined got %v, want %v", quarantined, tt.wantQuarantine)
			}
		})
	}
}

// When the quarantine publish itself fails, the message must stay in the
// stream: no ack, so the broker redelivers.
func TestHandleDelivery_QuarantineFailureLeavesMessage(t *testing.T) {
	mBlob := &MockBlobStore{OnFetch: func(ctx context.Context, id string) ([]byte, error) {
		return nil, docmodel.ErrBlobNotFound
	}}
	mQuarantine := &MockQuarantiner{OnQuarantine: func(ctx context.Context, data []byte, reason string) error {
		return errors.New("quarantine subject unreachable")
	}}

	s := newService(mBlob, &MockMetadataStore{}, &MockVectorDB{}, &MockEmbedder{}, mQuarantine)
	msg := &FakeDelivery{
		Payload:   eventBytes(t, docmodel.DocumentEvent{Id: "doc-1", Filename: "a.txt"}),
		Delivered: 1,
	}

	s.HandleDelivery(context.Background(), msg)

	if msg.Acked {
		t.Error("Message acked although quarantine publish failed")
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "Blob_Missing", err: docmodel.ErrBlobNotFound, want: true},
		{name: "Row_Missing", err: docmodel.ErrRecordNotFound, want: true},
		{name: "Extraction_Empty", err: docmodel.ErrExtraction, want: true},
		{name: "Wrapped_Terminal", err: errors.Join(errors.New("fetch blob"), docmodel.ErrBlobNotFound), want: true},
		{name: "Network_Error", err: errors.New("connection reset"), want: false},
		{name: "Nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := docmodel.IsTerminal(tt.err); got != tt.want {
				t.Errorf("IsTerminal(%v) got %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
