package mediastore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BackendType selects a storage backend.
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendS3    BackendType = "s3"
	BackendGit   BackendType = "git"
)

// Config holds backend selection plus per-backend settings.
type Config struct {
	Backend BackendType
	// Prefix namespaces every path inside the backend.
	Prefix string

	LocalDir string

	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Client   S3API

	Git GitOptions
}

// New builds the provider for cfg.Backend.
func New(ctx context.Context, cfg Config) (FileProvider, error) {
	var provider FileProvider

	switch cfg.Backend {
	case BackendLocal, "":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "."
		}
		provider = NewLocalFileProvider(dir)

	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		client := cfg.S3Client
		if client == nil {
			c, err := newS3Client(ctx, cfg)
			if err != nil {
				return nil, err
			}
			client = c
		}
		provider = NewS3FileProvider(client, cfg.S3Bucket, "")

	case BackendGit:
		gp, err := NewGitFileProvider(ctx, cfg.Git)
		if err != nil {
			return nil, err
		}
		provider = gp

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}

	if cfg.Prefix != "" {
		return NewPrefixed(provider, cfg.Prefix), nil
	}
	return provider, nil
}

func newS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
