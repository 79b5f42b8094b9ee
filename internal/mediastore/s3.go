package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3FileProvider reads media objects from a bucket.
type S3FileProvider struct {
	client S3API
	bucket string
	prefix string
}

// NewS3FileProvider creates a provider over bucket. Keys are prefix/name.
func NewS3FileProvider(client S3API, bucket, prefix string) *S3FileProvider {
	return &S3FileProvider{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (p *S3FileProvider) key(name string) (string, error) {
	rel, err := SafeJoin(".", name)
	if err != nil {
		return "", err
	}
	if rel == "." {
		rel = ""
	}
	if p.prefix == "" {
		return rel, nil
	}
	return path.Join(p.prefix, rel), nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// Read downloads an object.
func (p *S3FileProvider) Read(ctx context.Context, name string) ([]byte, error) {
	key, err := p.key(name)
	if err != nil {
		return nil, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, p.bucket, key)
		}
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, p.bucket, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// Exists heads an object. Only a not-found answer yields (false, nil).
func (p *S3FileProvider) Exists(ctx context.Context, name string) (bool, error) {
	key, err := p.key(name)
	if err != nil {
		return false, err
	}
	_, err = p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s in bucket %s: %w", key, p.bucket, err)
	}
	return true, nil
}

// List pages through every key under dir.
func (p *S3FileProvider) List(ctx context.Context, dir string) ([]string, error) {
	key, err := p.key(dir)
	if err != nil {
		return nil, err
	}
	listPrefix := ""
	if key != "" {
		listPrefix = key + "/"
	}
	strip := ""
	if p.prefix != "" {
		strip = p.prefix + "/"
	}

	result := []string{}
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var noBucket *types.NoSuchBucket
			if errors.As(err, &noBucket) {
				return nil, fmt.Errorf("%w: bucket %s", ErrNotFound, p.bucket)
			}
			return nil, fmt.Errorf("failed to list %s in bucket %s: %w", listPrefix, p.bucket, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if k == "" || strings.HasSuffix(k, "/") {
				continue
			}
			result = append(result, strings.TrimPrefix(k, strip))
		}
	}
	return result, nil
}
