// Package checkpoint persists runs suspended at the approval checkpoint so
// they can be resumed after an external decision.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Record is one persisted checkpoint. State is the serialized planning state.
type Record struct {
	RunID     string          `json:"run_id"`
	Token     string          `json:"token"`
	Step      string          `json:"step"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// FileStore keeps one JSON file per run in a directory.
type FileStore struct {
	dir    string
	mutex  sync.RWMutex
	logger Logger
}

// NewFileStore creates the directory if needed. A nil logger discards records.
func NewFileStore(dir string, logger Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errbuilder.GenericErr("failed to create checkpoint directory", err)
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return "", errbuilder.GenericErr("invalid run id", nil)
	}
	return filepath.Join(s.dir, runID+".json"), nil
}

// Save writes or replaces the checkpoint for rec.RunID.
func (s *FileStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return errbuilder.WrapIfContextDone(ctx, err)
	}
	path, err := s.path(rec.RunID)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errbuilder.GenericErr("failed to encode checkpoint", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("Checkpoint write failed", map[string]interface{}{"run_id": rec.RunID, "error": err.Error()})
		return errbuilder.GenericErr("failed to write checkpoint", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errbuilder.GenericErr("failed to commit checkpoint", err)
	}
	s.logger.Info("Checkpoint saved", map[string]interface{}{"run_id": rec.RunID, "step": rec.Step})
	return nil
}

// Load reads the checkpoint of a run.
func (s *FileStore) Load(ctx context.Context, runID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, errbuilder.WrapIfContextDone(ctx, err)
	}
	path, err := s.path(runID)
	if err != nil {
		return Record{}, err
	}
	s.mutex.RLock()
	data, err := os.ReadFile(path)
	s.mutex.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, errbuilder.NotFoundErr(errbuilder.GenericErr("checkpoint not found", nil))
	}
	if err != nil {
		return Record{}, errbuilder.GenericErr("failed to read checkpoint", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, errbuilder.GenericErr("failed to decode checkpoint", err)
	}
	return rec, nil
}

// Delete removes the checkpoint of a run. Deleting a missing checkpoint is not an error.
func (s *FileStore) Delete(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return errbuilder.WrapIfContextDone(ctx, err)
	}
	path, err := s.path(runID)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errbuilder.GenericErr("failed to delete checkpoint", err)
	}
	s.logger.Info("Checkpoint deleted", map[string]interface{}{"run_id": runID})
	return nil
}

// List returns every stored checkpoint, oldest first. Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errbuilder.WrapIfContextDone(ctx, err)
	}
	s.mutex.RLock()
	entries, err := os.ReadDir(s.dir)
	s.mutex.RUnlock()
	if err != nil {
		return nil, errbuilder.GenericErr("failed to list checkpoints", err)
	}
	var out []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.Load(ctx, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			s.logger.Error("Skipping unreadable checkpoint", map[string]interface{}{"file": e.Name(), "error": err.Error()})
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
