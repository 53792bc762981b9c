// Package classifier scores preprocessed headline text against a trained
// multinomial naive Bayes model shipped with the binary.
package classifier

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"

	"github.com/reliefwatch/reliefwatch/internal/textproc"
)

// NonDisaster is returned when no class clears the confidence threshold.
const NonDisaster = "non-disaster"

//go:embed model.json
var modelJSON []byte

// Model holds the trained classifier parameters: per-class log priors and
// a sparse token log-likelihood table. Tokens absent from the table score
// DefaultLogProb for every class.
type Model struct {
	Classes        []string                      `json:"classes"`
	ClassLogPrior  []float64                     `json:"class_log_prior"`
	DefaultLogProb float64                       `json:"default_log_prob"`
	TokenLogProb   map[string]map[string]float64 `json:"token_log_prob"`
}

// Prediction is the classifier output for one headline.
type Prediction struct {
	Category string
	Score    float64
}

// Classifier gates model predictions behind a minimum-confidence
// threshold.
type Classifier struct {
	model     *Model
	threshold float64
}

// New loads the embedded model.
func New(threshold float64) (*Classifier, error) {
	var m Model
	if err := json.Unmarshal(modelJSON, &m); err != nil {
		return nil, fmt.Errorf("parsing embedded model: %w", err)
	}
	return NewFromModel(&m, threshold)
}

// NewFromModel builds a classifier around an explicit model.
func NewFromModel(m *Model, threshold float64) (*Classifier, error) {
	if len(m.Classes) == 0 {
		return nil, fmt.Errorf("model has no classes")
	}
	if len(m.ClassLogPrior) != len(m.Classes) {
		return nil, fmt.Errorf("model has %d priors for %d classes", len(m.ClassLogPrior), len(m.Classes))
	}
	return &Classifier{model: m, threshold: threshold}, nil
}

// Classify preprocesses the headline, computes per-class probabilities,
// and returns the argmax category — or NonDisaster when the best
// probability falls below the threshold.
func (c *Classifier) Classify(headline string) Prediction {
	probs := c.Probabilities(headline)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	if probs[best] < c.threshold {
		return Prediction{Category: NonDisaster, Score: probs[best]}
	}
	return Prediction{Category: c.model.Classes[best], Score: probs[best]}
}

// Probabilities returns softmax-normalized class probabilities for the
// headline, in model class order.
func (c *Classifier) Probabilities(headline string) []float64 {
	tokens := textproc.Tokens(headline)

	scores := make([]float64, len(c.model.Classes))
	copy(scores, c.ClassLogPrior())

	for _, token := range tokens {
		perClass := c.model.TokenLogProb[token]
		for i, class := range c.model.Classes {
			if lp, ok := perClass[class]; ok {
				scores[i] += lp
			} else {
				scores[i] += c.model.DefaultLogProb
			}
		}
	}

	return softmax(scores)
}

// ClassLogPrior exposes the model priors, mainly for tests.
func (c *Classifier) ClassLogPrior() []float64 {
	return c.model.ClassLogPrior
}

// Classes returns the model's class labels.
func (c *Classifier) Classes() []string {
	return c.model.Classes
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(s - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
