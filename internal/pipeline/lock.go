package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// acquireLock takes an exclusive per-channel lock file so overlapping
// scans of the same channel cannot move or commit the same files twice.
// The returned release function removes the lock. With an empty dir
// locking is disabled.
func acquireLock(dir, channelName string) (func(), error) {
	if dir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	path := filepath.Join(dir, "scan-"+channelName+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("channel %s: scan already in progress (remove %s if stale)", channelName, path)
		}
		return nil, fmt.Errorf("locking channel %s: %w", channelName, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return func() { os.Remove(path) }, nil
}
