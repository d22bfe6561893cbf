package backup

import (
	"fmt"
	"os"
)

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []Record
	Kept    int
	Failed  int
}

// Prune removes old backups, keeping only the most recent keep backups.
// A backup that cannot be deleted is logged and counted as failed; pruning carries on with the others.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	backups, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}
	if len(backups) <= keep {
		result.Kept = len(backups)
		return result, nil
	}

	// backups are sorted newest first
	result.Kept = keep
	for _, backup := range backups[keep:] {
		if err := removeFile(backup.Path); err != nil {
			log.Printf("cannot delete old backup %q: %s", backup.Path, err)
			result.Failed++
			result.Kept++
			continue
		}
		log.Printf("old backup %q deleted", backup.Path)
		result.Deleted = append(result.Deleted, backup)
	}
	return result, nil
}

var removeFile = os.Remove
