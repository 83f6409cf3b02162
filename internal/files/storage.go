package files

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	presignExpiry = 15 * time.Minute
	maxUploadSize = 50 * 1024 * 1024
)

// Storage wraps the S3-compatible object store (MinIO/LocalStack/S3).
// Uploads never pass through this process: clients get presigned POSTs and
// downloads redirect to presigned GETs.
type Storage struct {
	client *minio.Client
	bucket string
}

// NewStorageFromEnv connects using S3_ENDPOINT, S3_ACCESS_KEY_ID,
// S3_SECRET_ACCESS_KEY, S3_REGION and S3_BUCKET, and ensures the bucket.
func NewStorageFromEnv(ctx context.Context) (*Storage, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://127.0.0.1:9000"
	}
	secure := strings.HasPrefix(endpoint, "https://")
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	accessKey := os.Getenv("S3_ACCESS_KEY_ID")
	if accessKey == "" {
		accessKey = "local"
	}
	secretKey := os.Getenv("S3_SECRET_ACCESS_KEY")
	if secretKey == "" {
		secretKey = "local"
	}
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		bucket = "covestack"
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	s := &Storage{client: client, bucket: bucket}
	if err := s.ensureBucket(ctx, region); err != nil {
		// The store may come up after us; presigning still works without
		// the bucket check having succeeded.
		logger.Sugar.Warnf("Could not ensure bucket %s: %v", bucket, err)
	}
	return s, nil
}

func (s *Storage) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region})
}

// PresignUpload returns a presigned POST for a direct browser upload.
func (s *Storage) PresignUpload(ctx context.Context, key, mime string) (string, map[string]string, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(s.bucket); err != nil {
		return "", nil, err
	}
	if err := policy.SetKey(key); err != nil {
		return "", nil, err
	}
	if err := policy.SetExpires(time.Now().UTC().Add(presignExpiry)); err != nil {
		return "", nil, err
	}
	if mime != "" {
		if err := policy.SetContentType(mime); err != nil {
			return "", nil, err
		}
	}
	if err := policy.SetContentLengthRange(0, maxUploadSize); err != nil {
		return "", nil, err
	}

	u, fields, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return "", nil, err
	}
	return u.String(), fields, nil
}

// PresignDownload returns a short-lived GET URL for the object.
func (s *Storage) PresignDownload(ctx context.Context, key, filename string) (string, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", `attachment; filename="`+filename+`"`)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignExpiry, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
