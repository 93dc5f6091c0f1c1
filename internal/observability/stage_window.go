package observability

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// stageTargets are the p95 budgets reported next to each relay stage.
var stageTargets = map[string]time.Duration{
	"translator_call":    800 * time.Millisecond,
	"dispatch_total":     1200 * time.Millisecond,
	"request_to_publish": 1500 * time.Millisecond,
}

type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	OverTarget  int     `json:"over_target,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type StageSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
}

// stageWindow keeps the most recent samples per stage plus running indicator counts.
type stageWindow struct {
	mu         sync.Mutex
	size       int
	rings      map[string]*sampleRing
	indicators map[string]int
}

// sampleRing overwrites its oldest sample once full.
type sampleRing struct {
	samples []float64
	head    int
	last    float64
}

func (r *sampleRing) add(ms float64, size int) {
	r.last = ms
	if len(r.samples) < size {
		r.samples = append(r.samples, ms)
		return
	}
	r.samples[r.head] = ms
	r.head = (r.head + 1) % size
}

func (r *sampleRing) stats(stage string) StageStats {
	sorted := slices.Sorted(slices.Values(r.samples))
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	st := StageStats{
		Stage:   stage,
		Samples: len(sorted),
		LastMS:  round2(r.last),
		AvgMS:   round2(sum / float64(len(sorted))),
		P50MS:   round2(nearestRank(sorted, 50)),
		P95MS:   round2(nearestRank(sorted, 95)),
		P99MS:   round2(nearestRank(sorted, 99)),
	}
	if target, ok := stageTargets[stage]; ok {
		st.TargetP95MS = durationMS(target)
		idx, _ := slices.BinarySearch(sorted, math.Nextafter(st.TargetP95MS, math.Inf(1)))
		st.OverTarget = len(sorted) - idx
	}
	return st
}

func newStageWindow(size int) *stageWindow {
	if size <= 0 {
		size = 256
	}
	return &stageWindow{
		size:       size,
		rings:      make(map[string]*sampleRing),
		indicators: make(map[string]int),
	}
}

func (w *stageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rings[stage]
	if !ok {
		r = &sampleRing{samples: make([]float64, 0, w.size)}
		w.rings[stage] = r
	}
	r.add(ms, w.size)
}

func (w *stageWindow) ObserveIndicator(name string) {
	if name = strings.TrimSpace(name); name == "" {
		return
	}
	w.mu.Lock()
	w.indicators[name]++
	w.mu.Unlock()
}

func (w *stageWindow) Snapshot() StageSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]StageStats, 0, len(w.rings)),
	}
	for _, stage := range slices.Sorted(maps.Keys(w.rings)) {
		if r := w.rings[stage]; len(r.samples) > 0 {
			snap.Stages = append(snap.Stages, r.stats(stage))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(w.indicators)) {
		snap.Indicators = append(snap.Indicators, Indicator{Name: name, Count: w.indicators[name]})
	}
	return snap
}

func nearestRank(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = max(1, min(rank, len(sorted)))
	return sorted[rank-1]
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
