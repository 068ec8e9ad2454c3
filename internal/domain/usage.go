package domain

import "time"

const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunUsage is the ledger record written once per run.
type RunUsage struct {
	RunID             string    `json:"run_id"`
	BaseDir           string    `json:"base_dir"`
	OutputDir         string    `json:"output_dir"`
	Status            string    `json:"status"`
	Error             string    `json:"error,omitempty"`
	FilesCopied       int64     `json:"files_copied"`
	ImagesScaled      int64     `json:"images_scaled"`
	ImagesPassedThru  int64     `json:"images_passed_through"`
	ArchivesRewritten int64     `json:"archives_rewritten"`
	EntriesSkipped    int64     `json:"entries_skipped"`
	PixelsProduced    int64     `json:"pixels_produced"`
	BytesRead         int64     `json:"bytes_read"`
	BytesWritten      int64     `json:"bytes_written"`
	ComputeTimeMS     int64     `json:"compute_time_ms"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}
