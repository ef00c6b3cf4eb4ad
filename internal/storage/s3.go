package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"

	"github.com/AngiE300512/just-ease/internal/errs"
)

// S3Backend stores blobs as private objects in an S3 (or S3 compatible) bucket.
type S3Backend struct {
	client s3iface.S3API
	bucket string
	prefix string
	log    *zap.Logger
}

// NewS3Backend creates a backend for bucket. Static credentials are used when accessKey and
// secretKey are set, otherwise the SDK's default credential chain applies.
func NewS3Backend(bucket, prefix, region, endpoint, accessKey, secretKey string, log *zap.Logger) (*S3Backend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is empty", errs.ErrValidation)
	}
	cfg := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(accessKey, secretKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewS3BackendWithClient(s3.New(sess), bucket, prefix, log), nil
}

// NewS3BackendWithClient wraps an existing client; tests pass a fake.
func NewS3BackendWithClient(client s3iface.S3API, bucket, prefix string, log *zap.Logger) *S3Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &S3Backend{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), log: log}
}

// Put uploads data under ref.
func (b *S3Backend) Put(ctx context.Context, ref string, data []byte, contentType string) error {
	key, err := b.key(ref)
	if err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	start := time.Now()
	if _, err := b.client.PutObjectWithContext(ctx, in); err != nil {
		b.log.Error("s3 put failed", zap.String("bucket", b.bucket), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("put object: %w", err)
	}
	b.log.Debug("blob stored", zap.String("backend", b.Name()), zap.String("key", key),
		zap.Int("size", len(data)), zap.Duration("duration", time.Since(start)))
	return nil
}

// Get downloads the object at ref.
func (b *S3Backend) Get(ctx context.Context, ref string) ([]byte, error) {
	key, err := b.key(ref)
	if err != nil {
		return nil, err
	}
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

// Delete removes the object at ref. S3 deletes are idempotent, so a HEAD first reports
// a missing object as errs.ErrNotFound.
func (b *S3Backend) Delete(ctx context.Context, ref string) error {
	key, err := b.key(ref)
	if err != nil {
		return err
	}
	if _, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNoSuchKey(err) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("head object: %w", err)
	}
	if _, err := b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Name identifies the backend in logs.
func (b *S3Backend) Name() string { return "s3-" + b.bucket }

func (b *S3Backend) key(ref string) (string, error) {
	c, err := cleanRef(ref)
	if err != nil {
		return "", err
	}
	if b.prefix == "" {
		return c, nil
	}
	return path.Join(b.prefix, c), nil
}

func isNoSuchKey(err error) bool {
	var ae awserr.Error
	if errors.As(err, &ae) {
		switch ae.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
