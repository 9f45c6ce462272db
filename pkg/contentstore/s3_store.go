package contentstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used here, extracted for tests.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store keeps documents in an S3 bucket under
// "<prefix>/sha256/<hex>". Put probes with HeadObject first so identical
// content is uploaded once.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store builds a store over an S3 client. prefix may be empty.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(id string) (string, error) {
	algo, hex, ok := strings.Cut(id, ":")
	if !ok || algo != "sha256" || hex == "" {
		return "", fmt.Errorf("invalid content id %q", id)
	}
	if s.prefix == "" {
		return algo + "/" + hex, nil
	}
	return s.prefix + "/" + algo + "/" + hex, nil
}

func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	id := ContentID(data)
	key, err := s.key(id)
	if err != nil {
		return "", err
	}
	exists, err := s.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return id, nil
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put content %s: %w", id, err)
	}
	return id, nil
}

func (s *S3Store) Get(ctx context.Context, id string) ([]byte, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get content %s: %w", id, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", id, err)
	}
	return data, nil
}

func (s *S3Store) Exists(ctx context.Context, id string) (bool, error) {
	key, err := s.key(id)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, key)
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, fmt.Errorf("head content: %w", err)
}
