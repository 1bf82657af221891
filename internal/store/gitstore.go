package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	log "github.com/sirupsen/logrus"
	"github.com/vkcalls/vkcall/internal/misc"
)

// gcInterval defines minimum time between garbage collection runs.
const gcInterval = 5 * time.Minute

// GitBackend keeps the key-value map as a JSON file inside a git working
// tree. Every change is committed; with a remote configured the branch is
// squashed to one commit and force-pushed so token history never accumulates.
type GitBackend struct {
	mu       sync.Mutex
	repoDir  string
	fileName string
	remote   string
	username string
	password string
	ready    bool
	lastGC   time.Time
}

// NewGitBackend creates a backend working in repoDir. remote may be empty
// for a local-only repository.
func NewGitBackend(repoDir, remote, username, password string) *GitBackend {
	return &GitBackend{
		repoDir:  filepath.Clean(repoDir),
		fileName: DefaultFileName,
		remote:   strings.TrimSpace(remote),
		username: username,
		password: password,
	}
}

// EnsureRepository clones, initializes or pulls the working tree.
func (s *GitBackend) EnsureRepository() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureRepositoryLocked()
}

func (s *GitBackend) ensureRepositoryLocked() error {
	if s.ready {
		return nil
	}
	if s.repoDir == "" || s.repoDir == "." {
		return fmt.Errorf("git store: repository directory not configured")
	}
	gitDir := filepath.Join(s.repoDir, ".git")
	authMethod := s.gitAuth()

	if _, err := os.Stat(gitDir); errors.Is(err, fs.ErrNotExist) {
		if errMk := os.MkdirAll(s.repoDir, 0o700); errMk != nil {
			return fmt.Errorf("git store: create repo dir: %w", errMk)
		}
		if s.remote == "" {
			if _, errInit := git.PlainInit(s.repoDir, false); errInit != nil {
				return fmt.Errorf("git store: init repo: %w", errInit)
			}
		} else if _, errClone := git.PlainClone(s.repoDir, &git.CloneOptions{Auth: authMethod, URL: s.remote}); errClone != nil {
			if !errors.Is(errClone, transport.ErrEmptyRemoteRepository) {
				return fmt.Errorf("git store: clone remote: %w", errClone)
			}
			_ = os.RemoveAll(gitDir)
			repo, errInit := git.PlainInit(s.repoDir, false)
			if errInit != nil {
				return fmt.Errorf("git store: init empty repo: %w", errInit)
			}
			if _, errCreate := repo.CreateRemote(&config.RemoteConfig{
				Name: "origin",
				URLs: []string{s.remote},
			}); errCreate != nil && !errors.Is(errCreate, git.ErrRemoteExists) {
				return fmt.Errorf("git store: configure remote: %w", errCreate)
			}
		}
	} else if err != nil {
		return fmt.Errorf("git store: stat repo: %w", err)
	} else if s.remote != "" {
		repo, errOpen := git.PlainOpen(s.repoDir)
		if errOpen != nil {
			return fmt.Errorf("git store: open repo: %w", errOpen)
		}
		worktree, errWorktree := repo.Worktree()
		if errWorktree != nil {
			return fmt.Errorf("git store: worktree: %w", errWorktree)
		}
		if errPull := worktree.Pull(&git.PullOptions{Auth: authMethod, RemoteName: "origin"}); errPull != nil {
			switch {
			case errors.Is(errPull, git.NoErrAlreadyUpToDate),
				errors.Is(errPull, git.ErrUnstagedChanges),
				errors.Is(errPull, git.ErrNonFastForwardUpdate):
				// Local changes win.
			case errors.Is(errPull, transport.ErrAuthenticationRequired),
				errors.Is(errPull, plumbing.ErrReferenceNotFound),
				errors.Is(errPull, transport.ErrEmptyRemoteRepository):
				log.Debugf("git store: pull skipped: %v", errPull)
			default:
				return fmt.Errorf("git store: pull: %w", errPull)
			}
		}
	}
	s.ready = true
	return nil
}

func (s *GitBackend) path() string {
	return filepath.Join(s.repoDir, s.fileName)
}

func (s *GitBackend) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRepositoryLocked(); err != nil {
		return "", false, err
	}
	values, err := readJSONMap(s.path())
	if err != nil {
		return "", false, fmt.Errorf("git store: %w", err)
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *GitBackend) Set(_ context.Context, key, value string) error {
	return s.update(fmt.Sprintf("Update %s", key), func(values map[string]string) bool {
		if current, ok := values[key]; ok && current == value {
			return false
		}
		values[key] = value
		return true
	})
}

func (s *GitBackend) Delete(_ context.Context, key string) error {
	return s.update(fmt.Sprintf("Delete %s", key), func(values map[string]string) bool {
		if _, ok := values[key]; !ok {
			return false
		}
		delete(values, key)
		return true
	})
}

func (s *GitBackend) Close() error { return nil }

func (s *GitBackend) update(message string, mutate func(map[string]string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRepositoryLocked(); err != nil {
		return err
	}
	values, err := readJSONMap(s.path())
	if err != nil {
		return fmt.Errorf("git store: %w", err)
	}
	if !mutate(values) {
		return nil
	}
	misc.LogSavingCredentials("git", s.path())
	if err = writeJSONMap(s.path(), values); err != nil {
		return fmt.Errorf("git store: %w", err)
	}
	return s.commitAndPushLocked(message, s.fileName)
}

func (s *GitBackend) gitAuth() transport.AuthMethod {
	if s.username == "" && s.password == "" {
		return nil
	}
	user := s.username
	if user == "" {
		user = "git"
	}
	return &http.BasicAuth{Username: user, Password: s.password}
}

func (s *GitBackend) commitAndPushLocked(message string, relPaths ...string) error {
	repo, err := git.PlainOpen(s.repoDir)
	if err != nil {
		return fmt.Errorf("git store: open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git store: worktree: %w", err)
	}
	for _, rel := range relPaths {
		if _, err = worktree.Add(rel); err != nil {
			return fmt.Errorf("git store: add %s: %w", rel, err)
		}
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("git store: status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	signature := &object.Signature{
		Name:  "vkcall",
		Email: "vkcall@local",
		When:  time.Now(),
	}
	commitHash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil
		}
		return fmt.Errorf("git store: commit: %w", err)
	}
	if s.remote == "" {
		return nil
	}

	headRef, errHead := repo.Head()
	if errHead != nil {
		if !errors.Is(errHead, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("git store: get head: %w", errHead)
		}
	} else if errRewrite := rewriteHeadAsSingleCommit(repo, headRef.Name(), commitHash, message, signature); errRewrite != nil {
		return errRewrite
	}
	s.maybeRunGC(repo)
	if err = repo.Push(&git.PushOptions{Auth: s.gitAuth(), Force: true}); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("git store: push: %w", err)
	}
	return nil
}

// rewriteHeadAsSingleCommit points branch at a parentless copy of commitHash.
func rewriteHeadAsSingleCommit(repo *git.Repository, branch plumbing.ReferenceName, commitHash plumbing.Hash, message string, signature *object.Signature) error {
	commitObj, err := repo.CommitObject(commitHash)
	if err != nil {
		return fmt.Errorf("git store: inspect head commit: %w", err)
	}
	squashed := &object.Commit{
		Author:       *signature,
		Committer:    *signature,
		Message:      message,
		TreeHash:     commitObj.TreeHash,
		ParentHashes: nil,
		Encoding:     commitObj.Encoding,
		ExtraHeaders: commitObj.ExtraHeaders,
	}
	mem := &plumbing.MemoryObject{}
	mem.SetType(plumbing.CommitObject)
	if err = squashed.Encode(mem); err != nil {
		return fmt.Errorf("git store: encode squashed commit: %w", err)
	}
	newHash, err := repo.Storer.SetEncodedObject(mem)
	if err != nil {
		return fmt.Errorf("git store: write squashed commit: %w", err)
	}
	if err = repo.Storer.SetReference(plumbing.NewHashReference(branch, newHash)); err != nil {
		return fmt.Errorf("git store: update branch reference: %w", err)
	}
	return nil
}

func (s *GitBackend) maybeRunGC(repo *git.Repository) {
	now := time.Now()
	if now.Sub(s.lastGC) < gcInterval {
		return
	}
	s.lastGC = now

	pruneOpts := git.PruneOptions{
		OnlyObjectsOlderThan: now,
		Handler:              repo.DeleteObject,
	}
	if err := repo.Prune(pruneOpts); err != nil && !errors.Is(err, git.ErrLooseObjectsNotSupported) {
		return
	}
	_ = repo.RepackObjects(&git.RepackConfig{})
}
