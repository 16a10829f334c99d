package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultKeepCount is the default number of run logs to retain.
const DefaultKeepCount = 20

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []string
	Kept    int
}

// List returns the run logs in dir, newest first. A missing directory is
// an empty list.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var logs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, FilePrefix) || filepath.Ext(name) != FileExt {
			continue
		}
		logs = append(logs, name)
	}

	// The timestamp layout sorts lexically in time order.
	sort.Sort(sort.Reverse(sort.StringSlice(logs)))

	return logs, nil
}

// Prune removes old run logs, keeping only the most recent keep files.
func Prune(dir string, keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	logs, err := List(dir)
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}

	if len(logs) <= keep {
		result.Kept = len(logs)
		return result, nil
	}

	toDelete := logs[keep:]
	result.Kept = keep

	for _, name := range toDelete {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return result, fmt.Errorf("failed to delete log %s: %w", name, err)
		}
		result.Deleted = append(result.Deleted, name)
	}

	return result, nil
}
