package domain

import (
	"math"
	"sort"
)

// Evaluation is the outcome of checking one submission against its question.
// Ratio is always in [0,1]; Correct is true iff Ratio >= 1.
type Evaluation struct {
	Ratio   float64
	Correct bool
}

// Evaluate checks a submission against a question and returns the correctness
// ratio. The submission shape must match the question type or
// ErrInvalidSubmission is returned.
func Evaluate(q Question, sub Submission) (Evaluation, error) {
	switch q.Type {
	case TypeSingleChoice, TypeTrueFalse:
		return evaluateSingle(q, sub)
	case TypeMultiSelect:
		return evaluateMulti(q, sub)
	case TypeOrdering:
		return evaluateOrdering(q, sub)
	case TypeNumericGuess:
		return evaluateGuess(q, sub)
	default:
		return Evaluation{}, ErrInvalidSubmission
	}
}

func evaluateSingle(q Question, sub Submission) (Evaluation, error) {
	if sub.OptionID == "" {
		return Evaluation{}, ErrInvalidSubmission
	}
	for _, opt := range q.Options {
		if opt.Correct && opt.ID == sub.OptionID {
			return Evaluation{Ratio: 1, Correct: true}, nil
		}
	}
	return Evaluation{}, nil
}

func evaluateMulti(q Question, sub Submission) (Evaluation, error) {
	if len(sub.OptionIDs) == 0 {
		return Evaluation{}, ErrInvalidSubmission
	}

	correct := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if opt.Correct {
			correct[opt.ID] = true
		}
	}

	selected := make(map[string]bool, len(sub.OptionIDs))
	for _, id := range sub.OptionIDs {
		selected[id] = true
	}

	if q.RequireAll {
		if len(selected) != len(correct) {
			return Evaluation{}, nil
		}
		for id := range selected {
			if !correct[id] {
				return Evaluation{}, nil
			}
		}
		return Evaluation{Ratio: 1, Correct: true}, nil
	}

	// Partial credit: wrong picks cancel right ones, clamped to [0,1].
	hits, misses := 0, 0
	for id := range selected {
		if correct[id] {
			hits++
		} else {
			misses++
		}
	}
	if len(correct) == 0 {
		return Evaluation{}, nil
	}
	ratio := clampRatio(float64(hits-misses) / float64(len(correct)))
	return Evaluation{Ratio: ratio, Correct: ratio >= 1}, nil
}

func evaluateOrdering(q Question, sub Submission) (Evaluation, error) {
	if len(sub.Ordering) == 0 {
		return Evaluation{}, ErrInvalidSubmission
	}

	expected := make([]Option, len(q.Options))
	copy(expected, q.Options)
	sort.SliceStable(expected, func(i, j int) bool {
		return expected[i].Position < expected[j].Position
	})

	if len(sub.Ordering) != len(expected) {
		return Evaluation{}, nil
	}

	matches := 0
	for i, id := range sub.Ordering {
		if expected[i].ID == id {
			matches++
		}
	}
	ratio := clampRatio(float64(matches) / float64(len(expected)))
	return Evaluation{Ratio: ratio, Correct: ratio >= 1}, nil
}

func evaluateGuess(q Question, sub Submission) (Evaluation, error) {
	if sub.Value == nil {
		return Evaluation{}, ErrInvalidSubmission
	}

	distance := math.Abs(*sub.Value - q.Target)
	if distance == 0 {
		return Evaluation{Ratio: 1, Correct: true}, nil
	}
	if q.Tolerance <= 0 || distance >= q.Tolerance {
		return Evaluation{}, nil
	}
	return Evaluation{Ratio: clampRatio(1 - distance/q.Tolerance)}, nil
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
