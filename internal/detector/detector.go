package detector

import (
	"math"

	"github.com/SiluPanda/coinmonitor/internal/market"
)

// DefaultMultiplier is how many times the average change the latest
// change must exceed to count as anomalous.
const DefaultMultiplier = 3.0

// minWindow is the smallest window the detector will reason about. The
// stride-2 comparison needs at least three samples for the latest change
// and at least one interior sample for the baseline.
const minWindow = 5

// Result is the outcome of a volatility detection over one coin's window.
//
// AverageChangePct and LatestChangePct are NaN when the window is too
// short to compute them (fewer than five samples) or when the reference
// rate for the latest change is zero; Anomalous is always false in those
// cases.
type Result struct {
	AverageChangePct float64
	LatestChangePct  float64
	Anomalous        bool
}

// Detect computes the volatility signal for one coin's history window.
//
// The baseline is the mean absolute percentage change of each interior
// sample against the sample two positions earlier, excluding the final
// two samples of the window. The latest change compares the last sample
// against the sample two positions before it. The window is anomalous
// when the latest change exceeds multiplier times the baseline.
//
// Samples whose reference rate is zero are skipped from the baseline
// rather than propagating infinity. A multiplier <= 0 falls back to
// DefaultMultiplier.
func Detect(samples []market.HistorySample, multiplier float64) Result {
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}

	n := len(samples)
	if n < minWindow {
		return Result{AverageChangePct: math.NaN(), LatestChangePct: math.NaN()}
	}

	total := 0.0
	count := 0
	for i := 2; i < n-2; i++ {
		change, ok := stridePct(samples, i)
		if !ok {
			continue
		}
		total += change
		count++
	}

	average := math.NaN()
	if count > 0 {
		average = total / float64(count)
	}

	latest, ok := stridePct(samples, n-1)
	if !ok {
		latest = math.NaN()
	}

	// NaN comparisons are false, so an undefined baseline or latest
	// change never flags an anomaly.
	anomalous := latest > multiplier*average

	return Result{
		AverageChangePct: average,
		LatestChangePct:  latest,
		Anomalous:        anomalous,
	}
}

// stridePct is the absolute percentage change of sample i against the
// sample two positions earlier. ok is false when the reference rate is
// zero.
func stridePct(samples []market.HistorySample, i int) (float64, bool) {
	ref := samples[i-2].Rate.InexactFloat64()
	if ref == 0 {
		return 0, false
	}
	cur := samples[i].Rate.InexactFloat64()
	return math.Abs(cur-ref) / ref * 100, true
}
