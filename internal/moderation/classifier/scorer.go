package classifier

import (
	"context"
	"errors"
)

// Attributes requested when none are configured.
var DefaultAttributes = []string{"TOXICITY", "SEVERE_TOXICITY", "INSULT", "THREAT"}

var (
	// ErrModelResponse is returned when a scoring backend answers with something unusable.
	ErrModelResponse = errors.New("unusable scoring response")
	// ErrUnknownScorer is returned for an unsupported backend name.
	ErrUnknownScorer = errors.New("unknown scorer")
)

// Scores maps an attribute name to a probability in [0,1].
type Scores map[string]float64

// Scorer rates a text against the attributes it was configured with.
type Scorer interface {
	Score(ctx context.Context, text string) (Scores, error)
}
