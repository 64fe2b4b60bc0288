package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"go.uber.org/zap"
)

// ErrNotRepository is returned when the vault is not inside a git repository.
var ErrNotRepository = errors.New("not a git repository")

// GitManager commits generated files in the vault repository
type GitManager struct {
	RepoPath    string
	AuthorName  string
	AuthorEmail string
	SSHKeyPath  string
	log         *zap.Logger
}

// NewGitManager creates a new GitManager
func NewGitManager(repoPath string, log *zap.Logger) *GitManager {
	if log == nil {
		log = zap.NewNop()
	}
	home, _ := os.UserHomeDir()
	return &GitManager{
		RepoPath:    repoPath,
		AuthorName:  "Vault Quest",
		AuthorEmail: "quest@vault.local",
		SSHKeyPath:  filepath.Join(home, ".ssh", "id_rsa"),
		log:         log,
	}
}

func (g *GitManager) open() (*git.Repository, error) {
	r, err := git.PlainOpenWithOptions(g.RepoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, g.RepoPath)
		}
		return nil, fmt.Errorf("failed to open repo: %w", err)
	}
	return r, nil
}

// Commit stages the given files and commits them. It reports false when none
// of them changed. Paths may be absolute or relative to RepoPath.
func (g *GitManager) Commit(paths []string, message string) (bool, error) {
	r, err := g.open()
	if err != nil {
		return false, err
	}

	w, err := r.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	root := w.Filesystem.Root()

	var staged []string
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(g.RepoPath, p)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return false, err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return false, err
		}
		rel = filepath.ToSlash(rel)
		if _, err := os.Stat(abs); err != nil {
			g.log.Debug("not committing missing file", zap.String("path", rel))
			continue
		}
		if _, err := w.Add(rel); err != nil {
			return false, fmt.Errorf("failed to add %s: %w", rel, err)
		}
		staged = append(staged, rel)
	}

	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("failed to read status: %w", err)
	}
	changed := false
	for _, rel := range staged {
		if s := status.File(rel); s.Staging != git.Unmodified && s.Staging != git.Untracked {
			changed = true
			break
		}
	}
	if !changed {
		return false, nil
	}

	if message == "" {
		message = fmt.Sprintf("vault-quest: sync %s", time.Now().Format("2006-01-02"))
	}

	_, err = w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.AuthorName,
			Email: g.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// Push pushes to the default remote, with the SSH key when it loads.
func (g *GitManager) Push() error {
	r, err := g.open()
	if err != nil {
		return err
	}

	opts := &git.PushOptions{}
	publicKeys, err := ssh.NewPublicKeysFromFile("git", g.SSHKeyPath, "")
	if err != nil {
		g.log.Warn("could not load SSH key, pushing without explicit auth",
			zap.String("key", g.SSHKeyPath), zap.Error(err))
	} else {
		opts.Auth = publicKeys
	}

	if err := r.Push(opts); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}
