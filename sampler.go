// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

package lcsearch

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// SearchSpace defines the ranges the hyperparameters are drawn from, one
// independent draw per trial. Learning rate and L2 regularization are
// sampled log-uniformly, the dropout rate uniformly.
type SearchSpace struct {
	LearningRateMin, LearningRateMax         float64
	L2RegularizationMin, L2RegularizationMax float64
	DropoutMin, DropoutMax                   float64
}

// DefaultSearchSpace returns the standard search ranges: learning rate in
// [1e-6, 1e-2], L2 regularization in [1e-3, 1e-1] and dropout in [0.1, 0.9].
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		LearningRateMin: 1e-6, LearningRateMax: 1e-2,
		L2RegularizationMin: 1e-3, L2RegularizationMax: 1e-1,
		DropoutMin: 0.1, DropoutMax: 0.9,
	}
}

// Validate returns an error if any range is empty, or if a log-uniform range
// includes non-positive values.
func (space SearchSpace) Validate() error {
	for _, r := range []struct {
		name     string
		min, max float64
		log      bool
	}{
		{"learning rate", space.LearningRateMin, space.LearningRateMax, true},
		{"l2 regularization", space.L2RegularizationMin, space.L2RegularizationMax, true},
		{"dropout", space.DropoutMin, space.DropoutMax, false},
	} {
		if r.min > r.max {
			return errors.Errorf("%s range [%g, %g] is empty", r.name, r.min, r.max)
		}
		if r.log && r.min <= 0 {
			return errors.Errorf("%s is sampled log-uniformly, its range [%g, %g] must be positive",
				r.name, r.min, r.max)
		}
	}
	return nil
}

// Hyperparameters is one sampled triple. It only lives for the duration of
// a trial, and is recorded alongside the trial's training history.
type Hyperparameters struct {
	LearningRate     float64 `json:"learning_rate"`
	L2Regularization float64 `json:"l2_regularization"`
	DropoutRate      float64 `json:"dropout_rate"`
}

// String implements fmt.Stringer, used when printing trial progress.
func (h Hyperparameters) String() string {
	return fmt.Sprintf("learning_rate=%.3g, l2_regularization=%.3g, dropout_rate=%.2f",
		h.LearningRate, h.L2Regularization, h.DropoutRate)
}

// Sample draws one hyperparameter triple from the space, using the given
// random number generator -- no hidden global state.
func (space SearchSpace) Sample(rng *rand.Rand) Hyperparameters {
	return Hyperparameters{
		LearningRate:     logUniform(rng, space.LearningRateMin, space.LearningRateMax),
		L2Regularization: logUniform(rng, space.L2RegularizationMin, space.L2RegularizationMax),
		DropoutRate:      uniform(rng, space.DropoutMin, space.DropoutMax),
	}
}

func uniform(rng *rand.Rand, low, high float64) float64 {
	return low + rng.Float64()*(high-low)
}

// logUniform samples uniformly in log space, so each decade of [low, high]
// is equally likely.
func logUniform(rng *rand.Rand, low, high float64) float64 {
	lowLog := math.Log(low)
	return math.Exp(lowLog + rng.Float64()*(math.Log(high)-lowLog))
}
