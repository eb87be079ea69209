package metrics

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Paintersrp/procctl/internal/rterr"
)

var (
	registry = prometheus.NewRegistry()

	spawns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procctl",
		Name:      "spawns_total",
		Help:      "Spawn attempts by variant and result.",
	}, []string{"variant", "result"})

	liveHandles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "procctl",
		Name:      "live_handles",
		Help:      "Process handles that have not been freed yet.",
	})

	kills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procctl",
		Name:      "kills_total",
		Help:      "Kill requests by result.",
	}, []string{"result"})

	waitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "procctl",
		Name:      "wait_seconds",
		Help:      "Time spent blocked waiting for a child to exit.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	exitCodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procctl",
		Name:      "exit_codes_total",
		Help:      "Observed child exit values.",
	}, []string{"code"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "procctl",
		Name:      "build_info",
		Help:      "Build metadata for the running procctl binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(spawns, liveHandles, kills, waitLatency, exitCodes, buildInfo)
}

// Registry returns the Prometheus registry containing all procctl metrics.
func Registry() *prometheus.Registry {
	return registry
}

// result labels err by its error kind.
func result(err error) string {
	switch kind := rterr.KindOf(err); {
	case err == nil:
		return "ok"
	case kind == rterr.ErrMemory:
		return "memory"
	case kind == rterr.ErrFile:
		return "file"
	case kind == rterr.ErrRange:
		return "range"
	default:
		return "error"
	}
}

// RegisterVariants creates the spawn series of every variant so they are
// exported before the first spawn.
func RegisterVariants(variants ...string) {
	for _, v := range variants {
		spawns.WithLabelValues(v, "ok")
	}
}

// ObserveSpawn counts a spawn attempt for variant.
func ObserveSpawn(variant string, err error) {
	if variant == "" {
		variant = "unknown"
	}
	spawns.WithLabelValues(variant, result(err)).Inc()
}

// HandleOpened records a new process handle.
func HandleOpened() { liveHandles.Inc() }

// HandleClosed records a freed process handle.
func HandleClosed() { liveHandles.Dec() }

// ObserveKill counts a kill request.
func ObserveKill(err error) {
	kills.WithLabelValues(result(err)).Inc()
}

// ObserveWait records how long a wait blocked.
func ObserveWait(d time.Duration) {
	waitLatency.Observe(d.Seconds())
}

// ObserveExit counts an observed exit value.
func ObserveExit(code int) {
	exitCodes.WithLabelValues(strconv.Itoa(code)).Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
