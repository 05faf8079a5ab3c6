package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"qusic/internal/model"
)

const (
	modelsDir     = "models"
	trainingDir   = "training"
	recordingsDir = "recordings"
	snapshotExt   = ".msgpack"
)

// FileStore keeps one msgpack snapshot per record under a data directory.
// A model's location is the path of its snapshot.
type FileStore struct {
	dir string

	mu          sync.RWMutex
	initialized bool
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(s.dir) == "" {
		return errors.New("file store directory is required")
	}
	for _, sub := range []string{modelsDir, trainingDir, recordingsDir} {
		if err := os.MkdirAll(filepath.Join(s.dir, sub), 0o755); err != nil {
			return err
		}
	}
	s.initialized = true
	return nil
}

func (s *FileStore) SaveModel(_ context.Context, rec model.ModelRecord) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	prepared, err := prepareModel(rec)
	if err != nil {
		return "", err
	}
	if err := checkID(prepared.ID); err != nil {
		return "", err
	}
	data, err := EncodeModelSnapshot(prepared)
	if err != nil {
		return "", err
	}

	path := s.path(modelsDir, prepared.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// LoadModel accepts either a snapshot path returned by SaveModel or a bare
// model id.
func (s *FileStore) LoadModel(_ context.Context, location string) (model.ModelRecord, bool, error) {
	path, err := s.modelPath(location)
	if err != nil {
		return model.ModelRecord{}, false, err
	}

	data, ok, err := s.read(path)
	if err != nil || !ok {
		return model.ModelRecord{}, false, err
	}
	rec, err := DecodeModelSnapshot(data)
	if err != nil {
		return model.ModelRecord{}, false, fmt.Errorf("decode model %s: %w", location, err)
	}
	return rec, true, nil
}

// modelPath resolves a location to a snapshot inside the models directory.
func (s *FileStore) modelPath(location string) (string, error) {
	if !strings.HasSuffix(location, snapshotExt) {
		if err := checkID(location); err != nil {
			return "", err
		}
		return s.path(modelsDir, location), nil
	}
	root, err := filepath.Abs(filepath.Join(s.dir, modelsDir))
	if err != nil {
		return "", err
	}
	path, err := filepath.Abs(location)
	if err != nil {
		return "", err
	}
	if filepath.Dir(path) != root {
		return "", fmt.Errorf("%w: model location %s is outside %s", model.ErrInvalidConfig, location, root)
	}
	return path, nil
}

func (s *FileStore) ListModels(ctx context.Context) ([]model.ModelSummary, error) {
	s.mu.RLock()
	entries, err := os.ReadDir(filepath.Join(s.dir, modelsDir))
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return []model.ModelSummary{}, nil
		}
		return nil, err
	}

	list := make([]model.ModelSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != snapshotExt {
			continue
		}
		rec, ok, err := s.LoadModel(ctx, filepath.Join(s.dir, modelsDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			list = append(list, summarize(rec))
		}
	}
	sortSummaries(list)
	return list, nil
}

func (s *FileStore) SaveTraining(_ context.Context, rec model.TrainingRecord) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkID(rec.RunID); err != nil {
		return err
	}
	stampVersion(&rec.VersionedRecord)
	data, err := EncodeTrainingSnapshot(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path(trainingDir, rec.RunID), data)
}

func (s *FileStore) GetTraining(_ context.Context, runID string) (model.TrainingRecord, bool, error) {
	if err := checkID(runID); err != nil {
		return model.TrainingRecord{}, false, err
	}
	data, ok, err := s.read(s.path(trainingDir, runID))
	if err != nil || !ok {
		return model.TrainingRecord{}, false, err
	}
	rec, err := DecodeTrainingSnapshot(data)
	if err != nil {
		return model.TrainingRecord{}, false, fmt.Errorf("decode training %s: %w", runID, err)
	}
	return rec, true, nil
}

func (s *FileStore) SavePerformance(_ context.Context, rec model.Recording) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkID(rec.ID); err != nil {
		return err
	}
	stampVersion(&rec.VersionedRecord)
	data, err := EncodeRecordingSnapshot(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path(recordingsDir, rec.ID), data)
}

func (s *FileStore) GetPerformance(_ context.Context, id string) (model.Recording, bool, error) {
	if err := checkID(id); err != nil {
		return model.Recording{}, false, err
	}
	data, ok, err := s.read(s.path(recordingsDir, id))
	if err != nil || !ok {
		return model.Recording{}, false, err
	}
	rec, err := DecodeRecordingSnapshot(data)
	if err != nil {
		return model.Recording{}, false, fmt.Errorf("decode recording %s: %w", id, err)
	}
	return rec, true, nil
}

// SaveWeights writes a bare weight snapshot to path.
func SaveWeights(path string, weights model.Tensor) error {
	if err := weights.Validate(); err != nil {
		return err
	}
	data, err := EncodeWeights(weights)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func LoadWeights(path string) (model.Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Tensor{}, err
	}
	return DecodeWeights(data)
}

func (s *FileStore) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return errNotInitialized
	}
	return nil
}

func (s *FileStore) path(kind, id string) string {
	return filepath.Join(s.dir, kind, id+snapshotExt)
}

func (s *FileStore) read(path string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: record id is required", model.ErrInvalidConfig)
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: record id %q is not a file name", model.ErrInvalidConfig, id)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
