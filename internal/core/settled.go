package core

// settled.go runs independent store operations with bounded concurrency and
// collects a tagged outcome for each one. A failing call never cancels its
// siblings; the caller decides how failures are counted.

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one unit of work.
type Outcome struct {
	Index int
	Err   error
}

// OK reports whether the unit succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// SettleAll calls fn for every index in [0, n) with at most width calls in
// flight and returns one Outcome per index, in index order. Panics in fn are
// recovered and reported as that unit's error.
func SettleAll(ctx context.Context, n, width int, fn func(ctx context.Context, i int) error) []Outcome {
	outcomes := make([]Outcome, n)
	if n == 0 {
		return outcomes
	}
	if width <= 0 {
		width = 1
	}

	var g errgroup.Group
	g.SetLimit(width)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			outcomes[i] = Outcome{Index: i, Err: callRecovered(ctx, i, fn)}
			return nil
		})
	}

	_ = g.Wait() // every goroutine returns nil
	return outcomes
}

func callRecovered(ctx context.Context, i int, fn func(ctx context.Context, i int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, i)
}

// Settlement aggregates failures across a run. Every failure is counted;
// only the first limit are itemized so the audit record stays bounded.
type Settlement struct {
	Failed int
	Errors []ImportError
	limit  int
}

// NewSettlement creates a Settlement that itemizes at most limit errors.
func NewSettlement(limit int) *Settlement {
	return &Settlement{limit: limit}
}

// Fail records count failed rows under one itemized entry for index.
func (s *Settlement) Fail(index, count int, err error) {
	s.Failed += count
	if len(s.Errors) < s.limit {
		s.Errors = append(s.Errors, ImportError{Index: index, Error: err.Error()})
	}
}

// Truncated reports whether failures were counted but not itemized.
func (s *Settlement) Truncated() bool {
	return s.Failed > len(s.Errors)
}
