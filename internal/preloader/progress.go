package preloader

import (
	"math"
	"time"
)

// windowPercent is the share of the sequence each stage occupies.
const windowPercent = 100 / StepCount

// Progress is a point-in-time view of a running sequence.
type Progress struct {
	Ratio   float64       `json:"ratio"`
	Percent int           `json:"percent"`
	Step    int           `json:"step"`
	Elapsed time.Duration `json:"elapsed"`
}

// ProgressAt derives the progress for elapsed time out of total.
func ProgressAt(elapsed, total time.Duration) Progress {
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := 1.0
	if total > 0 && elapsed < total {
		ratio = float64(elapsed) / float64(total)
	}
	percent := Percent(ratio)
	return Progress{
		Ratio:   ratio,
		Percent: percent,
		Step:    StepAtPercent(percent),
		Elapsed: elapsed,
	}
}

// Percent converts a ratio in [0,1] to a rounded percentage in [0,100].
// Only a ratio of exactly 1 reports 100.
func Percent(ratio float64) int {
	ratio = clampRatio(ratio)
	p := int(math.Round(ratio * 100))
	if p == 100 && ratio < 1 {
		return 99
	}
	return p
}

// StepIndex partitions [0,1] into StepCount equal windows. The last window is
// closed so that a ratio of exactly 1 maps to the final step.
func StepIndex(ratio float64) int {
	return clampStep(int(math.Floor(clampRatio(ratio) * StepCount)))
}

// StepAtPercent returns the stage whose window holds percent. Published
// progress uses it so the current stage is never one whose fill is complete.
func StepAtPercent(percent int) int {
	return clampStep(percent / windowPercent)
}

// Fill returns how much of a stage's label is filled, in percent, given the
// overall progress percentage. Below the stage's window it is 0, above it 100,
// and linear inside.
func Fill(step, percent int) float64 {
	start := float64(step * windowPercent)
	end := start + windowPercent
	p := float64(percent)
	switch {
	case p <= start:
		return 0
	case p >= end:
		return 100
	default:
		return (p - start) * 100 / windowPercent
	}
}

func clampRatio(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
