// Package storage persists raw audio objects in an S3-compatible bucket.
// A note's audio_path column is the only linkage between a row and its
// object; the store itself holds no metadata.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const defaultAudioExtension = "webm"

// Config describes the object-store connection.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// AudioStore uploads and removes audio objects in a single bucket.
type AudioStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewAudioStore connects to the object store and ensures the bucket exists.
func NewAudioStore(ctx context.Context, cfg Config, logger *zap.Logger) (*AudioStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("storage: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &AudioStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Upload writes audio bytes at the given object path.
func (s *AudioStore) Upload(ctx context.Context, objectPath string, audio []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectPath,
		bytes.NewReader(audio), int64(len(audio)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return err
	}
	s.logger.Info("audio uploaded to storage",
		zap.String("code", "storage.audio.uploaded"),
		zap.String("bucket", s.bucket),
		zap.String("path", objectPath),
		zap.Int("byte_size", len(audio)),
	)
	return nil
}

// Remove deletes the object at the given path.
func (s *AudioStore) Remove(ctx context.Context, objectPath string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{})
}

// BuildObjectPath derives the bucket path for a new recording:
// {userID}/{epochMillis}-{uuid}.{ext}. The extension comes from the
// client-supplied filename, defaulting to webm when absent.
func BuildObjectPath(userID, filename string, now time.Time) string {
	ext := defaultAudioExtension
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		ext = filename[idx+1:]
	}
	name := fmt.Sprintf("%d-%s.%s", now.UnixMilli(), uuid.NewString(), ext)
	return path.Join(userID, name)
}
