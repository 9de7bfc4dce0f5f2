package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var errOutputLocked = errors.New("output is locked by another run")

// writeAtomic replaces path with data atomically. Concurrent writers of the
// same path serialize on path+".lock"; one that cannot take the lock within
// wait gives up with errOutputLocked. A wait <= 0 tries once.
func writeAtomic(ctx context.Context, path string, data []byte, wait time.Duration) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock output: %w", err)
	}
	if !ok && wait > 0 {
		lockCtx, cancel := context.WithTimeout(ctx, wait)
		ok, err = lock.TryLockContext(lockCtx, 100*time.Millisecond)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("lock output: %w", err)
		}
	}
	if !ok {
		return fmt.Errorf("%s: %w", path, errOutputLocked)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("output temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
