package pipeline

import (
	"os"
	"path/filepath"
	"time"
)

// SweepExpired removes entries under the uploads directory older than the
// retention window. It covers retained extraction directories and any
// spooled archives left behind by crashed requests, so repeated uploads do
// not leak disk. Returns the number of entries removed.
func (p *Pipeline) SweepExpired() (int, error) {
	retention := time.Duration(p.uploads.RetentionMinutes) * time.Minute
	if retention <= 0 {
		retention = time.Hour
	}
	cutoff := time.Now().Add(-retention)

	entries, err := os.ReadDir(p.uploads.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.uploads.Dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
