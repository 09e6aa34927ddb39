package daemon

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// HistoryLock returns the file lock guarding reconciliation of one history
// run. The CLI and the scheduler share it so they never overlap.
func HistoryLock(lockDir string, historyID int64) *flock.Flock {
	return flock.New(filepath.Join(lockDir, fmt.Sprintf("history-%d.lock", historyID)))
}

func daemonLockPath(lockDir string) string {
	return filepath.Join(lockDir, "splintarr-daemon.lock")
}
