// Package storage keeps book cover images in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// publicPrefix is readable without credentials so stored image URLs resolve.
const publicPrefix = "books/"

type bucketAdmin interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucket, policy string) error
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// CoverStore uploads cover images and returns their public URL.
type CoverStore struct {
	client  objectPutter
	bucket  string
	baseURL string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewCoverStore connects to MinIO and creates the bucket when missing.
func NewCoverStore(ctx context.Context, opts Options) (*CoverStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	if err := ensureBucket(ctx, client, opts.Bucket); err != nil {
		return nil, err
	}
	return newCoverStore(client, opts.Bucket, client.EndpointURL().String()), nil
}

// ensureBucket creates the bucket when missing and grants anonymous reads
// on cover objects. The policy is reapplied on every start.
func ensureBucket(ctx context.Context, client bucketAdmin, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	if err := client.SetBucketPolicy(ctx, bucket, readPolicy(bucket)); err != nil {
		return fmt.Errorf("set policy on bucket %s: %w", bucket, err)
	}
	return nil
}

func readPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/%s*"]}]}`, bucket, publicPrefix)
}

func newCoverStore(client objectPutter, bucket, baseURL string) *CoverStore {
	return &CoverStore{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *CoverStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	return s.URL(key), nil
}

func (s *CoverStore) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}
