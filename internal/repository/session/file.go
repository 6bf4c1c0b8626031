package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"storefront-client/internal/domain"
)

// fileRepo keeps every profile in one JSON document so the CLI keeps its login
// between invocations. Writes go to a temp file that is renamed over the old
// one, so a crash leaves either the old or the new document.
type fileRepo struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) Repository {
	return &fileRepo{path: path}
}

func (r *fileRepo) Get(_ context.Context, profile string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.readLocked()
	if err != nil {
		return nil, err
	}
	s, ok := all[profile]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *fileRepo) Save(_ context.Context, profile string, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.readLocked()
	if err != nil {
		return err
	}
	all[profile] = s
	return r.writeLocked(all)
}

func (r *fileRepo) Delete(_ context.Context, profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.readLocked()
	if err != nil {
		return err
	}
	if _, ok := all[profile]; !ok {
		return domain.ErrNotFound
	}
	delete(all, profile)
	return r.writeLocked(all)
}

func (r *fileRepo) readLocked() (map[string]domain.Session, error) {
	all := make(map[string]domain.Session)
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session file")
	}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.Wrapf(err, "decode session file %s", r.path)
	}
	return all, nil
}

func (r *fileRepo) writeLocked(all map[string]domain.Session) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode sessions")
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "create temp session file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close session file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), r.path), "replace session file")
}
