package fleet

import "runtime"

// Sampler provides point-in-time memory/cpu readings attributed to
// scheduler runs. The default samples the Go heap; tests and platforms
// with better per-job accounting inject their own.
type Sampler interface {
	Sample() (memory uint64, cpu float64)
}

type runtimeSampler struct{}

// Sample reads the current heap allocation. Per-scheduler CPU cannot be
// attributed inside one process, so the cpu reading stays zero unless a
// platform-specific sampler is injected.
func (runtimeSampler) Sample() (uint64, float64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc, 0
}
