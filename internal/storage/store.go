package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"qusic/internal/model"
)

// Store persists trained models, their training runs and recorded performances.
// SaveModel returns an opaque location that LoadModel accepts.
type Store interface {
	Init(ctx context.Context) error
	SaveModel(ctx context.Context, rec model.ModelRecord) (string, error)
	LoadModel(ctx context.Context, location string) (model.ModelRecord, bool, error)
	ListModels(ctx context.Context) ([]model.ModelSummary, error)
	SaveTraining(ctx context.Context, rec model.TrainingRecord) error
	GetTraining(ctx context.Context, runID string) (model.TrainingRecord, bool, error)
	SavePerformance(ctx context.Context, rec model.Recording) error
	GetPerformance(ctx context.Context, id string) (model.Recording, bool, error)
}

// prepareModel fills the id, timestamp and version of a record about to be
// saved and deep copies it.
func prepareModel(rec model.ModelRecord) (model.ModelRecord, error) {
	if err := rec.Params.Validate(); err != nil {
		return model.ModelRecord{}, err
	}
	out := rec
	out.Config = rec.Config.Clone()
	out.Params = rec.Params.Clone()
	if strings.TrimSpace(out.ID) == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAtUTC == "" {
		out.CreatedAtUTC = time.Now().UTC().Format(time.RFC3339)
	}
	stampVersion(&out.VersionedRecord)
	stampVersion(&out.Config.VersionedRecord)
	return out, nil
}

func cloneModel(rec model.ModelRecord) model.ModelRecord {
	out := rec
	out.Config = rec.Config.Clone()
	out.Params = rec.Params.Clone()
	return out
}

func cloneTraining(rec model.TrainingRecord) model.TrainingRecord {
	out := rec
	out.Losses = append([]float64(nil), rec.Losses...)
	out.Melodies = append([]string(nil), rec.Melodies...)
	return out
}

func cloneRecording(rec model.Recording) model.Recording {
	out := rec
	out.Wires = append([]string(nil), rec.Wires...)
	out.Score = append([]string(nil), rec.Score...)
	out.Melody = cloneBits(rec.Melody)
	out.Harmony = cloneBits(rec.Harmony)
	if rec.Takes != nil {
		out.Takes = make([][][]int, len(rec.Takes))
		for i, take := range rec.Takes {
			out.Takes[i] = cloneBits(take)
		}
	}
	return out
}

func cloneBits(rows [][]int) [][]int {
	if rows == nil {
		return nil
	}
	out := make([][]int, len(rows))
	for i, row := range rows {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// sortSummaries orders newest first, then by id.
func sortSummaries(list []model.ModelSummary) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAtUTC == list[j].CreatedAtUTC {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAtUTC > list[j].CreatedAtUTC
	})
}
