package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qusic/internal/model"
)

func TestModelCodecsCarryVersions(t *testing.T) {
	rec := sampleModel("m-1")
	rec.VersionedRecord = currentVersion()

	data, err := EncodeModel(rec)
	require.NoError(t, err)
	decoded, err := DecodeModel(data)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)

	snapshot, err := EncodeModelSnapshot(rec)
	require.NoError(t, err)
	decoded, err = DecodeModelSnapshot(snapshot)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	rec := sampleModel("m-1")
	rec.VersionedRecord = model.VersionedRecord{SchemaVersion: 2, CodecVersion: 1}

	data, err := EncodeModel(rec)
	require.NoError(t, err)
	_, err = DecodeModel(data)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	snapshot, err := EncodeTrainingSnapshot(model.TrainingRecord{RunID: "r"})
	require.NoError(t, err)
	_, err = DecodeTrainingSnapshot(snapshot)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeModelRejectsBrokenTensor(t *testing.T) {
	rec := sampleModel("m-1")
	rec.VersionedRecord = currentVersion()
	rec.Params.Shape = []int{4, 4}

	data, err := EncodeModel(rec)
	require.NoError(t, err)
	_, err = DecodeModel(data)
	assert.ErrorIs(t, err, model.ErrInvalidShape)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeModel([]byte("{"))
	assert.Error(t, err)
	_, err = DecodeRecordingSnapshot([]byte{0xc1})
	assert.Error(t, err)
	_, err = DecodeWeights([]byte{0xc1})
	assert.Error(t, err)
}
