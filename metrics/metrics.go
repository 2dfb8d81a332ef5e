// Package metrics counts what workflows produce.  A CLI run is too short
// lived to be scraped, so the numbers are written out in the node-exporter
// textfile format when a path is configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

const namespace = "update_generator"

// Recorder is what the generator reports into.
type Recorder interface {
	ObservePackage(kind updategen.PackageType, outcome string, elapsed time.Duration)
	AddFilesStaged(kind updategen.PackageType, n int)
}

const (
	Outcome_Success = "success"
	Outcome_Failure = "failure"
)

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObservePackage(updategen.PackageType, string, time.Duration) {}
func (Noop) AddFilesStaged(updategen.PackageType, int)                   {}

// Prom implements Recorder on a private registry, so several instances
// (tests, say) never collide on the global one.
type Prom struct {
	Registry    *prometheus.Registry
	packages    *prometheus.CounterVec
	filesStaged *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func NewProm() *Prom {
	p := &Prom{
		Registry: prometheus.NewRegistry(),
		packages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_total",
			Help:      "Packages attempted, by type and outcome",
		}, []string{"type", "outcome"}),
		filesStaged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_staged_total",
			Help:      "Files copied into staging, by package type",
		}, []string{"type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Wall time of each workflow run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"type"}),
	}
	p.Registry.MustRegister(p.packages, p.filesStaged, p.duration)
	return p
}

func (p *Prom) ObservePackage(kind updategen.PackageType, outcome string, elapsed time.Duration) {
	p.packages.WithLabelValues(string(kind), outcome).Inc()
	p.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (p *Prom) AddFilesStaged(kind updategen.PackageType, n int) {
	p.filesStaged.WithLabelValues(string(kind)).Add(float64(n))
}

// WriteTextfile writes every metric to path, atomically.
func (p *Prom) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.Registry); err != nil {
		return Errorf(updategen.ErrIO, "cannot write metrics to %s: %s", path, err)
	}
	return nil
}
