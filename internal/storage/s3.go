package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/formtrack/formtrack/internal/config"
)

// s3API is the subset of the S3 client used by S3Storage. Narrowed to an
// interface so tests can stub object calls without a live endpoint.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// s3Presigner is the subset of the S3 presign client used by S3Storage.
type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error)
}

// v4PresignedRequest mirrors the URL-bearing part of the SDK's presigned
// request so the presigner can be stubbed in tests.
type v4PresignedRequest struct {
	URL string
}

// presignAdapter wraps the SDK presign client to satisfy s3Presigner.
type presignAdapter struct {
	pc *s3.PresignClient
}

func (a presignAdapter) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error) {
	req, err := a.pc.PresignGetObject(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	return &v4PresignedRequest{URL: req.URL}, nil
}

// S3Storage implements ObjectStorage against an S3-compatible endpoint.
type S3Storage struct {
	client        s3API
	presigner     s3Presigner
	bucket        string
	publicBaseURL string
}

// NewS3 creates an S3Storage from the storage config. The endpoint is used
// as a base endpoint with path-style addressing so MinIO works unchanged.
func NewS3(ctx context.Context, cfg config.StorageConfig) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3Storage{
		client:        client,
		presigner:     presignAdapter{pc: s3.NewPresignClient(client)},
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// Put writes an object under the given key.
func (s *S3Storage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}
	return nil
}

// SignedURL returns a presigned GET URL valid for the given expiry.
func (s *S3Storage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presigning object %q: %w", key, err)
	}
	return req.URL, nil
}

// PublicURL derives the unsigned public URL for the key from the configured
// public base URL. No network call is made; whether the object is actually
// readable depends on the bucket policy.
func (s *S3Storage) PublicURL(key string) (string, error) {
	if s.publicBaseURL == "" {
		return "", ErrNoPublicURL
	}
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, escapeKey(key)), nil
}

// Remove deletes the given objects in a single batch call. Missing keys are
// not reported as errors by S3, which matches the gateway contract.
func (s *S3Storage) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("deleting %d objects: %w", len(keys), err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("deleting object %s: %s",
			aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}

// escapeKey percent-encodes each path segment of a storage key while keeping
// the slashes that separate them.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
