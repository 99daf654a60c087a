// Package sink implements the sink registry: a JSON-file catalogue of
// data sink descriptors and the mesh agent serving CRUD over it.
package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"querymesh/internal/domain"
)

// FileStore keeps the whole catalogue in one JSON file. Every operation
// takes the mutex, loads the file, mutates and writes it back through a
// temp file rename, so updates are atomic within this process. Writers
// in other processes are not coordinated; single-writer deployment is
// assumed.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

var _ domain.SinkStore = (*FileStore)(nil)

func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create catalogue directory %s: %w", dir, err)
	}
	return &FileStore{path: path, logger: logger.With("component", "sink_store")}, nil
}

// load reads the full catalogue. A missing file is an empty catalogue.
// Callers must hold the mutex.
func (s *FileStore) load() (map[string]domain.SinkDescriptor, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]domain.SinkDescriptor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read sink catalogue: %w", err)
	}

	catalogue := map[string]domain.SinkDescriptor{}
	if len(data) == 0 {
		return catalogue, nil
	}
	if err := json.Unmarshal(data, &catalogue); err != nil {
		return nil, fmt.Errorf("corrupt sink catalogue %s: %w", s.path, err)
	}
	return catalogue, nil
}

// persist writes the full catalogue through a temp file so a crash
// mid-write never truncates the live catalogue. Callers must hold the
// mutex.
func (s *FileStore) persist(catalogue map[string]domain.SinkDescriptor) error {
	data, err := json.MarshalIndent(catalogue, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode sink catalogue: %w", err)
	}

	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("cannot write sink catalogue: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cannot write sink catalogue: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cannot sync sink catalogue: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cannot close sink catalogue: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cannot replace sink catalogue: %w", err)
	}
	return nil
}

// Register upserts a descriptor by sink id, replacing any previous
// descriptor wholesale.
func (s *FileStore) Register(sink domain.SinkDescriptor) error {
	if sink.SinkID == "" {
		return fmt.Errorf("sink descriptor must have a sink_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	catalogue, err := s.load()
	if err != nil {
		return err
	}
	catalogue[sink.SinkID] = sink
	if err := s.persist(catalogue); err != nil {
		return err
	}

	s.logger.Debug("sink registered", "sink_id", sink.SinkID, "sink_type", sink.SinkType)
	return nil
}

// Get returns (nil, nil) when the sink is not registered.
func (s *FileStore) Get(sinkID string) (*domain.SinkDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalogue, err := s.load()
	if err != nil {
		return nil, err
	}
	sink, ok := catalogue[sinkID]
	if !ok {
		return nil, nil
	}
	return &sink, nil
}

// List returns every descriptor ordered by sink id.
func (s *FileStore) List() ([]domain.SinkDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalogue, err := s.load()
	if err != nil {
		return nil, err
	}

	sinks := make([]domain.SinkDescriptor, 0, len(catalogue))
	for _, sink := range catalogue {
		sinks = append(sinks, sink)
	}
	sort.Slice(sinks, func(i, j int) bool { return sinks[i].SinkID < sinks[j].SinkID })
	return sinks, nil
}

// Delete removes a sink and reports whether it existed. Deleting an
// unknown sink is a no-op.
func (s *FileStore) Delete(sinkID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalogue, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := catalogue[sinkID]; !ok {
		return false, nil
	}
	delete(catalogue, sinkID)
	if err := s.persist(catalogue); err != nil {
		return false, err
	}

	s.logger.Debug("sink deleted", "sink_id", sinkID)
	return true, nil
}
