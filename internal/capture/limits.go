package capture

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultFrameRate is assumed when the stream reports no usable rate.
	DefaultFrameRate = 25.0

	// KeyFrameWait is how long a capture may wait for the first key frame.
	KeyFrameWait = 60 * time.Second

	// FrameJitter is the per-frame delivery allowance added to the deadline.
	FrameJitter = 300 * time.Millisecond

	// MaxFrameBudget keeps budget*255 within a uint64 accumulator.
	MaxFrameBudget = math.MaxUint64 / math.MaxUint8
)

// Limits bound one capture by frame count and wall-clock time.
type Limits struct {
	FrameBudget uint64
	Deadline    time.Time
	FrameRate   float64
}

// ResolveFrameRate picks the average rate, then the real rate, then DefaultFrameRate.
func ResolveFrameRate(rates FrameRates) (float64, error) {
	var fps float64
	switch {
	case rates.Average.Valid():
		fps = rates.Average.Float64()
	case rates.Real.Valid():
		fps = rates.Real.Float64()
	default:
		fps = DefaultFrameRate
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFrameRate, fps)
	}
	return fps, nil
}

// ComputeLimits derives the frame budget and deadline for one capture.
// A zero exposure grabs a single frame.
func ComputeLimits(rates FrameRates, exposure time.Duration, now time.Time) (Limits, error) {
	if exposure < 0 {
		return Limits{}, fmt.Errorf("%w: %s", ErrInvalidExposure, exposure)
	}

	fps, err := ResolveFrameRate(rates)
	if err != nil {
		return Limits{}, err
	}

	if exposure == 0 {
		return Limits{FrameBudget: 1, Deadline: now.Add(KeyFrameWait), FrameRate: fps}, nil
	}

	budget := frameBudget(exposure.Seconds() * fps)
	return Limits{
		FrameBudget: budget,
		Deadline:    now.Add(deadlineOffset(exposure, budget)),
		FrameRate:   fps,
	}, nil
}

func frameBudget(frames float64) uint64 {
	frames = math.Round(frames)
	if frames >= float64(MaxFrameBudget) {
		return MaxFrameBudget
	}
	if frames < 1 {
		return 1
	}
	return uint64(frames)
}

// deadlineOffset returns KeyFrameWait + exposure + FrameJitter*budget,
// saturating at the largest representable duration.
func deadlineOffset(exposure time.Duration, budget uint64) time.Duration {
	const maxDuration = time.Duration(math.MaxInt64)
	if exposure > maxDuration-KeyFrameWait {
		return maxDuration
	}
	remaining := maxDuration - KeyFrameWait - exposure
	if budget > uint64(remaining/FrameJitter) {
		return maxDuration
	}
	return KeyFrameWait + exposure + FrameJitter*time.Duration(budget)
}
