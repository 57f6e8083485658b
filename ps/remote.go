package ps

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
)

// AuthType defines the type of authentication
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeBasic AuthType = "basic"
)

// RemoteAuth holds credentials for pushing the journal.
type RemoteAuth struct {
	Type       AuthType `mapstructure:"type"`
	Token      string   `mapstructure:"token"`
	KeyPath    string   `mapstructure:"key_path"`
	Passphrase string   `mapstructure:"passphrase"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
}

// Remote is a named Git remote of the journal.
type Remote struct {
	Name string
	URLs []string
}

func (auth *RemoteAuth) getAuthMethod() (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case "", AuthTypeNone:
		return nil, nil

	case AuthTypeToken:
		return &http.BasicAuth{
			Username: "git",
			Password: auth.Token,
		}, nil

	case AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			home, _ := os.UserHomeDir()
			keyPath = home + "/.ssh/id_rsa"
		}
		return ssh.NewPublicKeysFromFile("git", keyPath, auth.Passphrase)

	case AuthTypeBasic:
		return &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", auth.Type)
	}
}

// AddRemote adds a named remote, or replaces the URL of an existing one.
func (j *Journal) AddRemote(name, url string) error {
	if err := j.ensureInitialized(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.repo.Remote(name); err == nil {
		if err := j.repo.DeleteRemote(name); err != nil {
			return fmt.Errorf("failed to replace remote '%s': %w", name, err)
		}
	}

	_, err := j.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("failed to add remote '%s': %w", name, err)
	}
	return nil
}

// Remotes returns the configured remotes.
func (j *Journal) Remotes() ([]Remote, error) {
	if err := j.ensureInitialized(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	remotes, err := j.repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}

	result := make([]Remote, len(remotes))
	for i, r := range remotes {
		cfg := r.Config()
		result[i] = Remote{
			Name: cfg.Name,
			URLs: cfg.URLs,
		}
	}
	return result, nil
}

func (j *Journal) RemoveRemote(name string) error {
	if err := j.ensureInitialized(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.repo.DeleteRemote(name); err != nil {
		return fmt.Errorf("failed to remove remote '%s': %w", name, err)
	}
	return nil
}

// Push sends the journal branch and its tags to a remote, "origin" when
// remoteName is empty. An up to date remote is not an error.
func (j *Journal) Push(ctx context.Context, remoteName string, auth *RemoteAuth) error {
	if err := j.ensureInitialized(); err != nil {
		return err
	}
	if remoteName == "" {
		remoteName = "origin"
	}

	authMethod, err := auth.getAuthMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	branch := plumbing.Master
	if headRef, err := j.repo.Head(); err == nil && headRef.Name().IsBranch() {
		branch = headRef.Name()
	}

	refSpecs := []config.RefSpec{
		config.RefSpec(fmt.Sprintf("%s:%s", branch, branch)),
		config.RefSpec("refs/tags/*:refs/tags/*"),
	}

	err = j.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   refSpecs,
		Auth:       authMethod,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push to '%s': %w", remoteName, err)
	}
	return nil
}
