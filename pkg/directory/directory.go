// Package directory implements the project registry: a YAML file mapping
// project names to filesystem paths with an auto-spawn policy. The router
// consumes it read-only apart from touch-on-access.
package directory

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"relay/pkg/protocol"
)

// registryFile is the on-disk shape of projects.yaml.
type registryFile struct {
	Projects []protocol.Project `yaml:"projects"`
}

// Registry provides lookup and touch-on-access over the project file.
// All access to the in-memory copy is protected by a mutex; Reload swaps
// the copy wholesale.
type Registry struct {
	path string

	mu       sync.Mutex
	projects []protocol.Project

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// Load reads the registry file at path. A missing file yields an empty
// registry rather than an error, so a fresh install works without setup.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path, nowFunc: time.Now}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the registry file, replacing the in-memory copy.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.mu.Lock()
		r.projects = nil
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry %s: %w", r.path, err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse registry %s: %w", r.path, err)
	}

	r.mu.Lock()
	r.projects = f.Projects
	r.mu.Unlock()
	return nil
}

// Find returns the project with the given name (case-insensitive), or nil
// if no such project is registered.
func (r *Registry) Find(name string) *protocol.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.projects {
		if strings.EqualFold(r.projects[i].Name, name) {
			p := r.projects[i]
			return &p
		}
	}
	return nil
}

// Touch updates the project's last-accessed timestamp and persists the
// registry. Unknown names are a no-op.
func (r *Registry) Touch(name string) error {
	r.mu.Lock()
	found := false
	for i := range r.projects {
		if strings.EqualFold(r.projects[i].Name, name) {
			r.projects[i].LastAccessed = r.nowFunc()
			found = true
			break
		}
	}
	snapshot := make([]protocol.Project, len(r.projects))
	copy(snapshot, r.projects)
	r.mu.Unlock()

	if !found {
		return nil
	}
	return r.persist(snapshot)
}

// List returns a snapshot of all registered projects.
func (r *Registry) List() []protocol.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Project, len(r.projects))
	copy(out, r.projects)
	return out
}

// ValidatePath reports whether path exists and is a directory.
func (r *Registry) ValidatePath(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// persist writes the registry file atomically via a temp file + rename.
func (r *Registry) persist(projects []protocol.Project) error {
	data, err := yaml.Marshal(registryFile{Projects: projects})
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write registry %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename registry %s: %w", r.path, err)
	}
	return nil
}
