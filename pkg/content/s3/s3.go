// Package s3 implements a content store on Amazon S3 or any S3-compatible
// endpoint.
//
// The store does not implement the ChunkedStore capability: S3 objects
// cannot be written at arbitrary byte offsets, so chunked upload jobs
// require the filesystem or memory store. Ranged reads map directly onto
// S3 byte-range requests, so partial content is served without downloading
// whole objects.
package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittostore/pkg/content"
)

// Store stores each payload as one S3 object keyed by content ID.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// Config configures the S3 content store.
type Config struct {
	// Client is a configured S3 client (credentials, region, endpoint)
	Client *s3.Client

	// Bucket is the bucket holding all payloads
	Bucket string

	// KeyPrefix is prepended to every object key ("" for none)
	KeyPrefix string
}

// New validates the configuration and returns the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 content store: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 content store: bucket is required")
	}
	return &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
	}, nil
}

func (s *Store) key(id content.ID) string {
	if s.keyPrefix == "" {
		return string(id)
	}
	return s.keyPrefix + "/" + string(id)
}

func (s *Store) Read(ctx context.Context, id content.ID) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, wrapGetError(id, err)
	}
	return out.Body, nil
}

func (s *Store) ReadRange(ctx context.Context, id content.ID, first, length int64) (io.ReadCloser, error) {
	if length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", first, first+length-1)),
	})
	if err != nil {
		return nil, wrapGetError(id, err)
	}
	return out.Body, nil
}

// Write uploads a payload with a single PutObject. The payload is buffered
// in memory because the SDK needs a seekable body for signing and we need
// the digest of exactly what was stored.
//
// TODO: switch to multipart upload above a configurable part size so huge
// version writes do not buffer fully in memory.
func (s *Store) Write(ctx context.Context, id content.ID, r io.Reader) (int64, []byte, error) {
	hash := md5.New()
	buf, err := io.ReadAll(io.TeeReader(r, hash))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read payload: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          bytes.NewReader(buf),
		ContentLength: aws.Int64(int64(len(buf))),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to put object to S3: %w", err)
	}
	return int64(len(buf)), hash.Sum(nil), nil
}

// ListIDs pages through the bucket (under the key prefix, when set) and
// returns every object key as a content ID.
func (s *Store) ListIDs(ctx context.Context) ([]content.ID, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	prefix := ""
	if s.keyPrefix != "" {
		prefix = s.keyPrefix + "/"
		input.Prefix = aws.String(prefix)
	}

	var ids []content.ID
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects from S3: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			ids = append(ids, content.ID(strings.TrimPrefix(key, prefix)))
		}
	}
	return ids, nil
}

func (s *Store) Delete(ctx context.Context, id content.ID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func wrapGetError(id content.ID, err error) error {
	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return fmt.Errorf("content %s: %w", id, content.ErrNotFound)
	}
	return fmt.Errorf("failed to get object from S3: %w", err)
}
