// Package sprt implements Wald's sequential probability ratio test over a
// stream of pass/fail observations. An observation of 1 is a failure and 0
// is a success.
package sprt

import (
	"errors"
	"fmt"
	"math"

	"github.com/kamusis/skillroute/internal/metrics"
)

// Decision is the outcome of a test.
type Decision string

const (
	Accept   Decision = "Accept"
	Reject   Decision = "Reject"
	Continue Decision = "Continue"
)

var (
	// ErrInvalidParams is returned for probabilities outside (0, 1) or p0 == p1.
	ErrInvalidParams = errors.New("invalid SPRT parameters")
	// ErrInvalidObservation is returned for observations other than 0 or 1.
	ErrInvalidObservation = errors.New("observation must be 0 or 1")
)

// Params holds the failure-rate hypotheses and the error rates.
// P0 is the failure rate under the baseline hypothesis, P1 under the
// regressed one.
type Params struct {
	P0    float64
	P1    float64
	Alpha float64
	Beta  float64
}

// DefaultParams returns p0=0.05, p1=0.20, alpha=0.05, beta=0.20.
func DefaultParams() Params {
	return Params{P0: 0.05, P1: 0.20, Alpha: 0.05, Beta: 0.20}
}

// Validate checks that every probability lies in (0, 1) and p0 != p1.
func (p Params) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{{"p0", p.P0}, {"p1", p.P1}, {"alpha", p.Alpha}, {"beta", p.Beta}} {
		if !(v.val > 0 && v.val < 1) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidParams, v.name, v.val)
		}
	}
	if p.P0 == p.P1 {
		return fmt.Errorf("%w: p0 and p1 are both %v", ErrInvalidParams, p.P0)
	}
	return nil
}

// Bounds returns ln(beta/(1-alpha)) and ln((1-beta)/alpha).
func (p Params) Bounds() (lower, upper float64) {
	return math.Log(p.Beta / (1 - p.Alpha)), math.Log((1 - p.Beta) / p.Alpha)
}

// State is the running log-likelihood ratio of one evaluation.
type State struct {
	LLR              float64
	LowerBound       float64
	UpperBound       float64
	SamplesEvaluated int

	failStep float64
	passStep float64
}

// NewState returns a fresh State for p.
func NewState(p Params) (*State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	lower, upper := p.Bounds()
	return &State{
		LowerBound: lower,
		UpperBound: upper,
		failStep:   math.Log(p.P1 / p.P0),
		passStep:   math.Log((1 - p.P1) / (1 - p.P0)),
	}, nil
}

// Decision returns the decision for the observations folded so far.
func (s *State) Decision() Decision {
	switch {
	case s.LLR >= s.UpperBound:
		return Reject
	case s.LLR <= s.LowerBound:
		return Accept
	default:
		return Continue
	}
}

// Terminal reports whether a bound has been crossed.
func (s *State) Terminal() bool { return s.Decision() != Continue }

// Observe folds one observation and returns the resulting decision. Once the
// state is terminal further observations are ignored.
func (s *State) Observe(obs int) (Decision, error) {
	if obs != 0 && obs != 1 {
		return s.Decision(), fmt.Errorf("%w: got %d", ErrInvalidObservation, obs)
	}
	if s.Terminal() {
		return s.Decision(), nil
	}
	if obs == 1 {
		s.LLR += s.failStep
	} else {
		s.LLR += s.passStep
	}
	s.SamplesEvaluated++
	return s.Decision(), nil
}

// Result is the decision object reported to callers.
type Result struct {
	Decision         Decision `json:"Decision"`
	FinalLLR         float64  `json:"FinalLLR"`
	SamplesEvaluated int      `json:"SamplesEvaluated"`
	LowerBound       float64  `json:"LowerBound"`
	UpperBound       float64  `json:"UpperBound"`
}

// Evaluate folds observations until a bound is crossed or the stream ends.
// An empty stream yields Continue with a zero LLR.
func Evaluate(observations []int, p Params) (Result, error) {
	s, err := NewState(p)
	if err != nil {
		return Result{}, err
	}
	for i, obs := range observations {
		d, err := s.Observe(obs)
		if err != nil {
			return Result{}, fmt.Errorf("observation %d: %w", i, err)
		}
		if d != Continue {
			break
		}
	}
	metrics.ObserveSPRT(string(s.Decision()))
	return Result{
		Decision:         s.Decision(),
		FinalLLR:         s.LLR,
		SamplesEvaluated: s.SamplesEvaluated,
		LowerBound:       s.LowerBound,
		UpperBound:       s.UpperBound,
	}, nil
}
