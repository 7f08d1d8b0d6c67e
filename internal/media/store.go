package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hakimhealth/hakim/internal/config"
)

// urlExpiry is how long a presigned audio URL stays valid. The transport
// fetches the object immediately after the send call, so this is short.
const urlExpiry = 10 * time.Minute

// AudioStore holds synthesized audio in object storage just long enough for
// the transport to fetch it by presigned URL.
type AudioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewAudioStore connects the object-storage client and ensures the bucket
// exists. The client is created once at startup and reused.
func NewAudioStore(ctx context.Context, log *slog.Logger, cfg config.StorageConfig) (*AudioStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &AudioStore{
		client: client,
		bucket: cfg.Bucket,
		logger: log.With(slog.String("service", "audio_store")),
	}, nil
}

// PutForSend uploads audio under a random key and returns a time-boxed
// presigned URL plus a release function. The caller must invoke release
// after the send attempt, success or not; the object never outlives it.
func (s *AudioStore) PutForSend(ctx context.Context, audio []byte, contentType string) (string, func(), error) {
	key := uuid.NewString() + ".mp3"

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(audio), int64(len(audio)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", nil, fmt.Errorf("upload audio: %w", err)
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, urlExpiry, nil)
	if err != nil {
		s.remove(key)
		return "", nil, fmt.Errorf("presign audio url: %w", err)
	}

	release := func() { s.remove(key) }
	return signed.String(), release, nil
}

func (s *AudioStore) remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Warn("remove audio object failed", slog.String("key", key), slog.Any("error", err))
	}
}
