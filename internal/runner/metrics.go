package runner

import (
	"fmt"

	"github.com/dunamismax/enlarge/internal/mirror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type metrics struct {
	registry           *prometheus.Registry
	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	filesCopiedTotal   prometheus.Counter
	imagesTotal        *prometheus.CounterVec
	fallbacksTotal     prometheus.Counter
	archivesTotal      prometheus.Counter
	archiveEntries     *prometheus.CounterVec
	pixelsProduced     prometheus.Counter
	bytesReadTotal     prometheus.Counter
	bytesWrittenTotal  prometheus.Counter
	directoriesCreated prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enlarge_runs_total",
			Help: "Total runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enlarge_run_duration_seconds",
			Help:    "Wall clock duration of each run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"status"}),
		filesCopiedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enlarge_files_copied_total",
			Help: "Files copied byte for byte.",
		}),
		imagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enlarge_images_total",
			Help: "Images handled, loose or inside archives, by result.",
		}, []string{"result"}),
		fallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enlarge_resampler_fallbacks_total",
			Help: "Images enlarged by the fallback resampler.",
		}),
		archivesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enlarge_archives_rewritten_total",
			Help: "Archives rewritten.",
		}),
		archiveEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enlarge_archive_entries_total",
			Help: "Archive entries by result.",
		}, []string{"result"}),
		pixelsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enlarge_pixels_produced_total",
			Help: "Pixels in enlarged images.",
		}),
		bytesReadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enlarge_bytes_read_total",
			Help: "Source bytes read.",
		}),
		bytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enlarge_bytes_written_total",
			Help: "Output bytes written.",
		}),
		directoriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enlarge_directories_created_total",
			Help: "Output directories created.",
		}),
	}

	registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.filesCopiedTotal,
		m.imagesTotal,
		m.fallbacksTotal,
		m.archivesTotal,
		m.archiveEntries,
		m.pixelsProduced,
		m.bytesReadTotal,
		m.bytesWrittenTotal,
		m.directoriesCreated,
	)
	return m
}

func (m *metrics) observe(stats mirror.Stats, status string, seconds float64) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(seconds)
	m.filesCopiedTotal.Add(float64(stats.FilesCopied))
	m.imagesTotal.WithLabelValues("scaled").Add(float64(stats.ImagesScaled))
	m.imagesTotal.WithLabelValues("passed_through").Add(float64(stats.ImagesPassedThru))
	m.fallbacksTotal.Add(float64(stats.FallbacksUsed))
	m.archivesTotal.Add(float64(stats.ArchivesRewritten))
	m.archiveEntries.WithLabelValues("written").Add(float64(stats.ArchiveEntries))
	m.archiveEntries.WithLabelValues("skipped_duplicate").Add(float64(stats.EntriesSkipped))
	m.pixelsProduced.Add(float64(stats.PixelsProduced))
	m.bytesReadTotal.Add(float64(stats.BytesRead))
	m.bytesWrittenTotal.Add(float64(stats.BytesWritten))
	m.directoriesCreated.Add(float64(stats.DirectoriesCreated))
}

// writeTextfile dumps the registry in the node exporter textfile format.
func (m *metrics) writeTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
