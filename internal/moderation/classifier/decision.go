package classifier

import (
	"slices"
)

// Thresholds configure the flag decision.
type Thresholds struct {
	Average float64 // mean score above which a message is flagged
	Spike   float64 // single score above which a message is flagged
}

// DefaultThresholds flag a message averaging above 0.5 or spiking above 0.7.
var DefaultThresholds = Thresholds{Average: 0.5, Spike: 0.7}

// Verdict is the outcome of classifying one message.
type Verdict struct {
	Flagged      bool
	Mean         float64
	Highest      string
	HighestScore float64
}

// Decide flags scores whose mean exceeds the average threshold or that contain
// a single score above the spike threshold. Both comparisons are strict. Empty
// scores are never flagged.
func Decide(scores Scores, t Thresholds) Verdict {
	if len(scores) == 0 {
		return Verdict{}
	}

	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}

	// Sorted so ties pick the same attribute every time
	slices.Sort(names)

	var (
		v     Verdict
		sum   float64
		spike bool
	)

	for _, name := range names {
		score := scores[name]
		sum += score

		if v.Highest == "" || score > v.HighestScore {
			v.Highest = name
			v.HighestScore = score
		}

		if score > t.Spike {
			spike = true
		}
	}

	v.Mean = sum / float64(len(scores))
	v.Flagged = spike || v.Mean > t.Average

	return v
}
