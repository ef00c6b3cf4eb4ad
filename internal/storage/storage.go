// Package storage keeps sealed document blobs on the local disk or in S3.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/AngiE300512/just-ease/internal/errs"
)

// Backend stores opaque blobs by path. Get and Delete of a missing path return errs.ErrNotFound.
type Backend interface {
	Put(ctx context.Context, ref string, data []byte, contentType string) error
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	Name() string
}

// Backend kinds accepted by New.
const (
	KindFile = "file"
	KindS3   = "s3"
)

// Options selects and configures a backend.
type Options struct {
	Kind string

	Root string // file

	Bucket    string // s3
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

// New builds the backend named by o.Kind.
func New(o Options, log *zap.Logger) (Backend, error) {
	switch o.Kind {
	case KindFile, "":
		return NewFileBackend(o.Root, log)
	case KindS3:
		return NewS3Backend(o.Bucket, o.Prefix, o.Region, o.Endpoint, o.AccessKey, o.SecretKey, log)
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", o.Kind)
	}
}

// cleanRef normalises a blob path and rejects anything that could escape the store root.
func cleanRef(ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "/") || strings.Contains(ref, "\\") {
		return "", fmt.Errorf("%w: blob path %q", errs.ErrValidation, ref)
	}
	c := path.Clean(ref)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: blob path %q", errs.ErrValidation, ref)
	}
	return c, nil
}
