package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"metatask/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeFamilySummary(s model.FamilySummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeFamilySummary(data []byte) (model.FamilySummary, error) {
	var summary model.FamilySummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.FamilySummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.FamilySummary{}, err
	}
	return summary, nil
}

func EncodeLossHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeLossHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(record model.VersionedRecord) error {
	if record.SchemaVersion != CurrentSchemaVersion || record.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, record.SchemaVersion, record.CodecVersion)
	}
	return nil
}
