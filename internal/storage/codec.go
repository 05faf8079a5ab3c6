package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"qusic/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func stampVersion(v *model.VersionedRecord) {
	if v.SchemaVersion == 0 && v.CodecVersion == 0 {
		*v = currentVersion()
	}
}

func EncodeModel(rec model.ModelRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func DecodeModel(data []byte) (model.ModelRecord, error) {
	var rec model.ModelRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.ModelRecord{}, err
	}
	if err := checkModel(rec); err != nil {
		return model.ModelRecord{}, err
	}
	return rec, nil
}

// EncodeModelSnapshot is the binary form used for file snapshots.
func EncodeModelSnapshot(rec model.ModelRecord) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func DecodeModelSnapshot(data []byte) (model.ModelRecord, error) {
	var rec model.ModelRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return model.ModelRecord{}, err
	}
	if err := checkModel(rec); err != nil {
		return model.ModelRecord{}, err
	}
	return rec, nil
}

func EncodeTraining(rec model.TrainingRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func DecodeTraining(data []byte) (model.TrainingRecord, error) {
	var rec model.TrainingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.TrainingRecord{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.TrainingRecord{}, err
	}
	return rec, nil
}

func EncodeTrainingSnapshot(rec model.TrainingRecord) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func DecodeTrainingSnapshot(data []byte) (model.TrainingRecord, error) {
	var rec model.TrainingRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return model.TrainingRecord{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.TrainingRecord{}, err
	}
	return rec, nil
}

func EncodeRecording(rec model.Recording) ([]byte, error) {
	return json.Marshal(rec)
}

func DecodeRecording(data []byte) (model.Recording, error) {
	var rec model.Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Recording{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.Recording{}, err
	}
	return rec, nil
}

func EncodeRecordingSnapshot(rec model.Recording) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func DecodeRecordingSnapshot(data []byte) (model.Recording, error) {
	var rec model.Recording
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return model.Recording{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.Recording{}, err
	}
	return rec, nil
}

// weightsEnvelope carries a bare parameter tensor without model config.
type weightsEnvelope struct {
	model.VersionedRecord
	Weights model.Tensor `msgpack:"weights"`
}

func EncodeWeights(t model.Tensor) ([]byte, error) {
	return msgpack.Marshal(weightsEnvelope{VersionedRecord: currentVersion(), Weights: t})
}

func DecodeWeights(data []byte) (model.Tensor, error) {
	var env weightsEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return model.Tensor{}, err
	}
	if err := checkVersion(env.VersionedRecord); err != nil {
		return model.Tensor{}, err
	}
	if err := env.Weights.Validate(); err != nil {
		return model.Tensor{}, err
	}
	return env.Weights, nil
}

func checkModel(rec model.ModelRecord) error {
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return err
	}
	if err := rec.Params.Validate(); err != nil {
		return fmt.Errorf("model %s: %w", rec.ID, err)
	}
	return nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema %d codec %d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}

func summarize(rec model.ModelRecord) model.ModelSummary {
	return model.ModelSummary{
		ID:           rec.ID,
		Ansatz:       rec.Config.Ansatz,
		Wires:        len(rec.Config.Wires),
		Params:       rec.Params.Len(),
		CreatedAtUTC: rec.CreatedAtUTC,
	}
}
