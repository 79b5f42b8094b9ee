package mediastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// GitOptions configures a git-backed media library.
type GitOptions struct {
	// Path is the working copy on disk.
	Path string
	// RemoteURL is cloned into Path when Path holds no repository.
	RemoteURL string
	// Branch to clone and pull. Empty follows the remote HEAD.
	Branch string
	// Username and Password enable HTTPS basic auth.
	Username string
	Password string
	// SSHKeyPath enables SSH public key auth.
	SSHKeyPath     string
	SSHKeyPassword string
}

// GitFileProvider serves media from a git working copy that can be
// fast-forwarded from its remote.
type GitFileProvider struct {
	*LocalFileProvider

	repo *git.Repository
	opts GitOptions
	auth transport.AuthMethod
	mu   sync.Mutex
}

func gitAuth(opts GitOptions) (transport.AuthMethod, error) {
	switch {
	case opts.SSHKeyPath != "":
		keys, err := ssh.NewPublicKeysFromFile("git", opts.SSHKeyPath, opts.SSHKeyPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to load ssh key: %w", err)
		}
		return keys, nil
	case opts.Username != "" || opts.Password != "":
		return &githttp.BasicAuth{Username: opts.Username, Password: opts.Password}, nil
	default:
		return nil, nil
	}
}

// NewGitFileProvider opens the working copy at opts.Path, cloning it from
// opts.RemoteURL first when it does not exist yet.
func NewGitFileProvider(ctx context.Context, opts GitOptions) (*GitFileProvider, error) {
	if opts.Path == "" {
		return nil, errors.New("repository path is required")
	}

	auth, err := gitAuth(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.PlainOpen(opts.Path)
	switch {
	case err == nil:
	case errors.Is(err, git.ErrRepositoryNotExists) && opts.RemoteURL != "":
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create repository directory: %w", err)
		}
		cloneOpts := &git.CloneOptions{URL: opts.RemoteURL, Auth: auth, SingleBranch: opts.Branch != ""}
		if opts.Branch != "" {
			cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
		}
		repo, err = git.PlainCloneContext(ctx, opts.Path, false, cloneOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to clone %s: %w", opts.RemoteURL, err)
		}
	default:
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	local := NewLocalFileProvider(opts.Path)
	local.skipDirs = map[string]bool{".git": true}

	return &GitFileProvider{
		LocalFileProvider: local,
		repo:              repo,
		opts:              opts,
		auth:              auth,
	}, nil
}

// Sync fast-forwards the working copy from origin. Repositories without
// an origin remote are left as they are.
func (p *GitFileProvider) Sync(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.repo.Remote(git.DefaultRemoteName); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up remote: %w", err)
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	pullOpts := &git.PullOptions{RemoteName: git.DefaultRemoteName, Auth: p.auth}
	if p.opts.Branch != "" {
		pullOpts.ReferenceName = plumbing.NewBranchReferenceName(p.opts.Branch)
		pullOpts.SingleBranch = true
	}
	err = worktree.PullContext(ctx, pullOpts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}

// Head returns the checked out commit hash.
func (p *GitFileProvider) Head() (string, error) {
	ref, err := p.repo.Head()
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}
