package storage

import "testing"

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store, err := NewStore("", "")
	if err != nil {
		t.Fatalf("new default store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store for empty kind, got %T", store)
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	if err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestCloseIfSupportedOnMemoryStore(t *testing.T) {
	if err := CloseIfSupported(NewMemoryStore()); err != nil {
		t.Fatalf("close memory store: %v", err)
	}
}

func TestDefaultStoreKind(t *testing.T) {
	if DefaultStoreKind() != "memory" {
		t.Fatalf("default store kind: got=%s", DefaultStoreKind())
	}
}
