package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/milordbot/internal/mediastore"
)

// StorageConfig selects where command tables and media files live.
type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" yaml:"backend" default:"local"` // "local", "s3", or "git"
	Prefix   string `env:"STORAGE_PREFIX" yaml:"prefix"`
	LocalDir string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"."`

	S3Bucket   string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`
	S3Region   string `env:"STORAGE_S3_REGION" yaml:"s3_region"`
	S3Endpoint string `env:"STORAGE_S3_ENDPOINT" yaml:"s3_endpoint"` // S3-compatible endpoint (optional)

	GitPath           string `env:"STORAGE_GIT_PATH" yaml:"git_path"`
	GitRemoteURL      string `env:"STORAGE_GIT_REMOTE_URL" yaml:"git_remote_url"`
	GitBranch         string `env:"STORAGE_GIT_BRANCH" yaml:"git_branch"`
	GitAuthUsername   string `env:"STORAGE_GIT_AUTH_USERNAME" yaml:"git_auth_username"`
	GitAuthPassword   string `env:"STORAGE_GIT_AUTH_PASSWORD" yaml:"git_auth_password"`
	GitSSHKeyPath     string `env:"STORAGE_GIT_SSH_KEY_PATH" yaml:"git_ssh_key_path"`
	GitSSHKeyPassword string `env:"STORAGE_GIT_SSH_KEY_PASSWORD" yaml:"git_ssh_key_password"`

	// SyncInterval refreshes syncable backends (git) while the bot runs.
	// Zero disables it.
	SyncInterval time.Duration `env:"STORAGE_SYNC_INTERVAL" yaml:"sync_interval"`
}

// Validate checks that the selected backend has what it needs.
func (c *StorageConfig) Validate() error {
	var result error
	switch mediastore.BackendType(c.Backend) {
	case mediastore.BackendLocal:
	case mediastore.BackendS3:
		if c.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage_s3_bucket is required for the s3 backend"))
		}
	case mediastore.BackendGit:
		if c.GitPath == "" {
			result = multierror.Append(result, fmt.Errorf("storage_git_path is required for the git backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("storage_backend must be one of [local, s3, git], got %q", c.Backend))
	}
	if c.SyncInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("storage_sync_interval cannot be negative"))
	}
	return result
}

// MediaStore converts the settings for mediastore.New.
func (c *StorageConfig) MediaStore() mediastore.Config {
	return mediastore.Config{
		Backend:    mediastore.BackendType(c.Backend),
		Prefix:     c.Prefix,
		LocalDir:   c.LocalDir,
		S3Bucket:   c.S3Bucket,
		S3Region:   c.S3Region,
		S3Endpoint: c.S3Endpoint,
		Git: mediastore.GitOptions{
			Path:           c.GitPath,
			RemoteURL:      c.GitRemoteURL,
			Branch:         c.GitBranch,
			Username:       c.GitAuthUsername,
			Password:       c.GitAuthPassword,
			SSHKeyPath:     c.GitSSHKeyPath,
			SSHKeyPassword: c.GitSSHKeyPassword,
		},
	}
}
