package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestWriteAndRead(t *testing.T) {
	store := newStore(t)
	name, err := store.Write(context.Background(), "./Chanel_No_5_nobg.png", []byte("png"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if name != "Chanel_No_5_nobg.png" {
		t.Fatalf("name = %q", name)
	}
	if !store.Exists(name) {
		t.Fatalf("expected %s to exist", name)
	}
	data, err := store.Read(name)
	if err != nil || string(data) != "png" {
		t.Fatalf("Read = %q, %v", data, err)
	}
}

func TestRejectsTraversalAndNesting(t *testing.T) {
	store := newStore(t)
	for _, key := range []string{"", "..", "../secret", "a/b.png", "."} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestReadMissing(t *testing.T) {
	store := newStore(t)
	if _, err := store.Read("missing.png"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestLatestMatchingPicksNewest(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)
	for _, name := range []string{"x_nobg_1.png", "x_nobg_2.png", "x_styled_3.png"} {
		if _, err := store.Write(ctx, name, []byte(name)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := os.Chtimes(filepath.Join(store.BasePath(), "x_nobg_2.png"), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if err := os.Chtimes(filepath.Join(store.BasePath(), "x_styled_3.png"), time.Now().Add(time.Hour), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	got, err := store.LatestMatching("*nobg*.png")
	if err != nil {
		t.Fatalf("LatestMatching: %v", err)
	}
	if got != "x_nobg_1.png" {
		t.Fatalf("LatestMatching = %q", got)
	}

	if _, err := store.LatestMatching("*seedance*.mp4"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
