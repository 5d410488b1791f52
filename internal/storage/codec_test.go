package storage

import (
	"errors"
	"testing"

	"metatask/internal/model"
)

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: 99, CodecVersion: CurrentCodecVersion},
		ID:              "run-1",
	}
	payload, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodeFamilySummaryRejectsVersionMismatch(t *testing.T) {
	summary := model.FamilySummary{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: 0},
		Name:            "x",
	}
	payload, err := EncodeFamilySummary(summary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeFamilySummary(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestLossHistoryCodecRoundTrip(t *testing.T) {
	payload, err := EncodeLossHistory([]float64{1.5, 0.5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	history, err := DecodeLossHistory(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(history) != 2 || history[0] != 1.5 || history[1] != 0.5 {
		t.Fatalf("round trip mismatch: %v", history)
	}
}

func TestDecodeRunRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeRun([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}
