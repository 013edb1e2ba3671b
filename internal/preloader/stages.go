// Package preloader drives the timed four-stage intro reveal shown before the
// marketing pages are mounted.
package preloader

import "time"

const (
	// StepCount is the number of stages in the reveal sequence.
	StepCount = 4
	// DefaultDuration is the total length of the intro sequence.
	DefaultDuration = 7500 * time.Millisecond
	// DefaultTickInterval is how often progress is recomputed while running.
	DefaultTickInterval = 10 * time.Millisecond
)

// Direction describes the edge a stage's image slides in from.
type Direction string

const (
	DirectionLeft   Direction = "left"
	DirectionRight  Direction = "right"
	DirectionTop    Direction = "top"
	DirectionBottom Direction = "bottom"
)

// Stage is one step of the reveal.
type Stage struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Image     string    `json:"image"`
	Direction Direction `json:"direction"`
}

// Stages lists the reveal steps in display order.
var Stages = [StepCount]Stage{
	{ID: 1, Text: "EXPLORE", Image: "preloader/explore.png", Direction: DirectionLeft},
	{ID: 2, Text: "EXPERIENCE", Image: "preloader/experience.png", Direction: DirectionBottom},
	{ID: 3, Text: "COMFORT", Image: "preloader/comfort.png", Direction: DirectionRight},
	{ID: 4, Text: "CONFIDENCE", Image: "preloader/confidence.png", Direction: DirectionTop},
}

// StageAt returns the stage for a step index, clamped to the valid range.
func StageAt(step int) Stage {
	return Stages[clampStep(step)]
}

func clampStep(step int) int {
	if step < 0 {
		return 0
	}
	if step > StepCount-1 {
		return StepCount - 1
	}
	return step
}
