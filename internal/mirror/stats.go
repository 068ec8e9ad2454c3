package mirror

import (
	"github.com/dunamismax/enlarge/internal/archive"
	"github.com/dunamismax/enlarge/internal/pipeline"
)

// Stats counts what a walk did. Images inside archives are included in the
// image counters.
type Stats struct {
	DirectoriesCreated int64
	FilesCopied        int64
	ImagesScaled       int64
	ImagesPassedThru   int64
	FallbacksUsed      int64
	ArchivesRewritten  int64
	ArchiveEntries     int64
	EntriesSkipped     int64
	PixelsProduced     int64
	BytesRead          int64
	BytesWritten       int64
}

func (s *Stats) addImage(o pipeline.Outcome) {
	if o.Passthrough {
		s.ImagesPassedThru++
	} else {
		s.ImagesScaled++
		s.PixelsProduced += int64(o.Width) * int64(o.Height)
	}
	if o.Fallback {
		s.FallbacksUsed++
	}
	s.BytesWritten += o.BytesWritten
}

func (s *Stats) addArchive(r archive.Result) {
	s.ArchivesRewritten++
	s.ArchiveEntries += int64(r.Entries)
	s.EntriesSkipped += int64(r.Skipped)
	s.ImagesScaled += int64(r.Images - r.Passthrough)
	s.ImagesPassedThru += int64(r.Passthrough)
	s.FallbacksUsed += int64(r.Fallbacks)
	s.PixelsProduced += r.PixelsProduced
	s.BytesRead += r.BytesRead
	s.BytesWritten += r.BytesWritten
}
