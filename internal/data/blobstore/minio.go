package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	instance *Store
	once     sync.Once
	logger   *logger_i.Logger
)

// Store keeps raw document bytes under documents/<id>. The producer writes a
// blob before it writes the metadata row, so an orphan blob is possible and
// ignorable; a blob missing for a known id is not.
type Store struct {
	client *minio.Client
	bucket string
}

func GetBlobStore(ctx context.Context) *Store {
	once.Do(func() {
		logger = logger_i.NewLogger("BlobStore")
		instance = newStore(ctx)
	})
	return instance
}

func newStore(ctx context.Context) *Store {
	endpoint := config.EnvOr("MINIO_ENDPOINT", config.MinioEndpoint)
	accessKey := config.EnvOr("MINIO_ACCESS_KEY", config.MinioAccessKey)
	secretKey := config.EnvOr("MINIO_SECRET_KEY", config.MinioSecretKey)
	bucket := config.EnvOr("BLOB_BUCKET", config.BlobBucket)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: config.MinioUseSSL,
	})
	if err != nil {
		logger.Error("could not instantiate minio client", "error", err)
		return nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ensureBucket(initCtx, client, bucket); err != nil {
		logger.Error("could not ensure bucket", "bucket", bucket, "error", err)
		return nil
	}

	logger.Info("Blob store connected", "endpoint", endpoint, "bucket", bucket)
	return &Store{client: client, bucket: bucket}
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func objectKey(id string) string {
	return config.BlobKeyPrefix + id
}

func (s *Store) Store(ctx context.Context, id string, content []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(id),
		bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("put blob %s: %w", id, err)
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, id string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", id, err)
	}
	defer object.Close()

	content, err := io.ReadAll(object)
	if err != nil {
		// GetObject is lazy, a missing key only surfaces on read.
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("blob %s: %w", id, docmodel.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return content, nil
}

func (s *Store) Probe(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
