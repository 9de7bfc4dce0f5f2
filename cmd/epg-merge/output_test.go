package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "epg.xml")
	ctx := context.Background()
	if err := writeAtomic(ctx, path, []byte("one"), time.Second); err != nil {
		t.Fatal(err)
	}
	if err := writeAtomic(ctx, path, []byte("two"), time.Second); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "two" {
		t.Fatalf("read = %q, %v", data, err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "epg.xml" && e.Name() != "epg.xml.lock" {
			t.Errorf("leftover file %q", e.Name())
		}
	}
}

func TestWriteAtomicLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epg.xml")
	held := flock.New(path + ".lock")
	if ok, err := held.TryLock(); !ok || err != nil {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer held.Unlock()

	err := writeAtomic(context.Background(), path, []byte("x"), 250*time.Millisecond)
	if !errors.Is(err, errOutputLocked) {
		t.Fatalf("err = %v, want errOutputLocked", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("output should not exist: %v", err)
	}
}
