package duckdb

import (
	"os"
	"time"
)

// Input kinds recorded for a run.
const (
	InputBAM   = "bam"
	InputPeaks = "peaks"
	InputCalls = "calls"
)

// FileFingerprint holds stat-based identity for a run input.
type FileFingerprint struct {
	Kind    string
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(kind, path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Kind:    kind,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
