package risk

import (
	"errors"
	"fmt"
)

var (
	ErrModelUnavailable = errors.New("risk model unavailable")
	ErrPrediction       = errors.New("risk model prediction failed")
	ErrUnknownOrdinal   = errors.New("risk model returned unknown ordinal")
	ErrInvalidArtifact  = errors.New("invalid risk model artifact")
)

// Rule thresholds in mm of one-hour rainfall.
const (
	CautionRainfall = 30.0
	DangerRainfall  = 50.0
)

// Method names the path that produced a Result.
type Method string

const (
	MethodModel Method = "model"
	MethodRule  Method = "rule"
)

// Model predicts an ordinal per feature row. Rows are [rainfall_mm, river_level_m].
type Model interface {
	Predict(rows [][]float64) ([]int, error)
}

// Result is the outcome of one classification. Err is set when model mode was
// attempted and the rule fallback was used instead.
type Result struct {
	Level  Level
	Method Method
	Err    error
}

// Classifier selects model or rule mode once at construction.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	model Model
}

// NewClassifier returns a Classifier in model mode, or rule mode when model is nil.
func NewClassifier(model Model) *Classifier {
	return &Classifier{model: model}
}

// HasModel reports whether the classifier runs in model mode.
func (c *Classifier) HasModel() bool {
	return c.model != nil
}

// Classify returns the risk level for the given observation.
func (c *Classifier) Classify(rainfall, riverLevel float64) Result {
	if c.model == nil {
		return Result{Level: RuleLevel(rainfall), Method: MethodRule}
	}
	level, err := c.predict(rainfall, riverLevel)
	if err != nil {
		return Result{Level: RuleLevel(rainfall), Method: MethodRule, Err: err}
	}
	return Result{Level: level, Method: MethodModel}
}

func (c *Classifier) predict(rainfall, riverLevel float64) (level Level, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrPrediction, r)
		}
	}()
	out, err := c.model.Predict([][]float64{{rainfall, riverLevel}})
	if err != nil {
		if errors.Is(err, ErrPrediction) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: got %d predictions for 1 row", ErrPrediction, len(out))
	}
	return FromOrdinal(out[0])
}

// RuleLevel is the threshold fallback. It never returns Severe.
func RuleLevel(rainfall float64) Level {
	switch {
	case rainfall < CautionRainfall:
		return Safe
	case rainfall < DangerRainfall:
		return Caution
	default:
		return Danger
	}
}
