package classifier

import "testing"

func newTestClassifier(t *testing.T, threshold float64) *Classifier {
	t.Helper()
	c, err := New(threshold)
	if err != nil {
		t.Fatalf("failed to load embedded model: %v", err)
	}
	return c
}

func TestClassifyEarthquakeHeadline(t *testing.T) {
	c := newTestClassifier(t, 0.95)
	p := c.Classify("Magnitude 7.4 quake rocks region")
	if p.Category != "earthquake" {
		t.Errorf("expected earthquake, got %q (score %.4f)", p.Category, p.Score)
	}
	if p.Score < 0.95 {
		t.Errorf("expected score >= 0.95, got %.4f", p.Score)
	}
}

func TestClassifyTyphoonHeadline(t *testing.T) {
	c := newTestClassifier(t, 0.95)
	p := c.Classify("Two dead, over 400,000 affected by habagat due to typhoon")
	if p.Category != "typhoon" {
		t.Errorf("expected typhoon, got %q", p.Category)
	}
}

func TestBelowThresholdIsNonDisaster(t *testing.T) {
	c := newTestClassifier(t, 0.95)
	// No disaster vocabulary at all: every class scores identically, so
	// the argmax probability is 1/len(classes), far below threshold.
	p := c.Classify("Senate passes national budget bill for next year")
	if p.Category != NonDisaster {
		t.Errorf("expected non-disaster, got %q (score %.4f)", p.Category, p.Score)
	}
	if p.Score >= 0.95 {
		t.Errorf("ambiguous headline should not clear the threshold, got %.4f", p.Score)
	}
}

func TestThresholdGateOverridesArgmax(t *testing.T) {
	// With an impossible threshold, even a clear earthquake headline must
	// come back non-disaster: the gate applies regardless of argmax class.
	c := newTestClassifier(t, 1.01)
	p := c.Classify("Magnitude 7.4 quake rocks region")
	if p.Category != NonDisaster {
		t.Errorf("expected non-disaster under impossible threshold, got %q", p.Category)
	}
}

func TestProbabilitiesSumToOne(t *testing.T) {
	c := newTestClassifier(t, 0.95)
	probs := c.Probabilities("Fire razes homes in city")
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("probabilities sum to %.6f, want 1", sum)
	}
}

func TestNewFromModelValidation(t *testing.T) {
	_, err := NewFromModel(&Model{Classes: []string{"a", "b"}, ClassLogPrior: []float64{-1}}, 0.95)
	if err == nil {
		t.Error("expected error for mismatched priors")
	}
	_, err = NewFromModel(&Model{}, 0.95)
	if err == nil {
		t.Error("expected error for empty model")
	}
}
