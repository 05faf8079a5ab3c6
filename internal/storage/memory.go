package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"qusic/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	models      map[string]model.ModelRecord
	training    map[string]model.TrainingRecord
	recordings  map[string]model.Recording
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.models = make(map[string]model.ModelRecord)
	s.training = make(map[string]model.TrainingRecord)
	s.recordings = make(map[string]model.Recording)
	return nil
}

func (s *MemoryStore) SaveModel(_ context.Context, rec model.ModelRecord) (string, error) {
	prepared, err := prepareModel(rec)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", errNotInitialized
	}
	s.models[prepared.ID] = prepared
	return prepared.ID, nil
}

func (s *MemoryStore) LoadModel(_ context.Context, location string) (model.ModelRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.models[location]
	if !ok {
		return model.ModelRecord{}, false, nil
	}
	return cloneModel(rec), true, nil
}

func (s *MemoryStore) ListModels(_ context.Context) ([]model.ModelSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.ModelSummary, 0, len(s.models))
	for _, rec := range s.models {
		list = append(list, summarize(rec))
	}
	sortSummaries(list)
	return list, nil
}

func (s *MemoryStore) SaveTraining(_ context.Context, rec model.TrainingRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("%w: run id is required", model.ErrInvalidConfig)
	}
	stampVersion(&rec.VersionedRecord)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	s.training[rec.RunID] = cloneTraining(rec)
	return nil
}

func (s *MemoryStore) GetTraining(_ context.Context, runID string) (model.TrainingRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.training[runID]
	if !ok {
		return model.TrainingRecord{}, false, nil
	}
	return cloneTraining(rec), true, nil
}

func (s *MemoryStore) SavePerformance(_ context.Context, rec model.Recording) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: recording id is required", model.ErrInvalidConfig)
	}
	stampVersion(&rec.VersionedRecord)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	s.recordings[rec.ID] = cloneRecording(rec)
	return nil
}

func (s *MemoryStore) GetPerformance(_ context.Context, id string) (model.Recording, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recordings[id]
	if !ok {
		return model.Recording{}, false, nil
	}
	return cloneRecording(rec), true, nil
}
