// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

package lcsearch

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleWithinRanges(t *testing.T) {
	space := DefaultSearchSpace()
	require.NoError(t, space.Validate())
	rng := rand.New(rand.NewSource(0))
	var sawSmallLR, sawLargeLR bool
	for range 10_000 {
		h := space.Sample(rng)
		require.GreaterOrEqual(t, h.LearningRate, space.LearningRateMin)
		require.LessOrEqual(t, h.LearningRate, space.LearningRateMax)
		require.GreaterOrEqual(t, h.L2Regularization, space.L2RegularizationMin)
		require.LessOrEqual(t, h.L2Regularization, space.L2RegularizationMax)
		require.GreaterOrEqual(t, h.DropoutRate, space.DropoutMin)
		require.LessOrEqual(t, h.DropoutRate, space.DropoutMax)
		sawSmallLR = sawSmallLR || h.LearningRate < 1e-4
		sawLargeLR = sawLargeLR || h.LearningRate > 1e-4
	}
	// Log-uniform sampling puts half the mass on each side of the range's
	// geometric midpoint.
	assert.True(t, sawSmallLR, "no learning rate sampled below the geometric midpoint")
	assert.True(t, sawLargeLR, "no learning rate sampled above the geometric midpoint")
}

func TestSampleDeterminism(t *testing.T) {
	space := DefaultSearchSpace()
	rngA := rand.New(rand.NewSource(42))
	rngB := rand.New(rand.NewSource(42))
	for range 100 {
		assert.Equal(t, space.Sample(rngA), space.Sample(rngB))
	}
}

func TestSearchSpaceValidate(t *testing.T) {
	space := DefaultSearchSpace()
	space.LearningRateMin, space.LearningRateMax = 1e-2, 1e-6
	assert.Error(t, space.Validate(), "empty range must not validate")

	space = DefaultSearchSpace()
	space.L2RegularizationMin = 0
	assert.Error(t, space.Validate(), "log-uniform range must be positive")

	space = DefaultSearchSpace()
	space.DropoutMin, space.DropoutMax = 0.5, 0.5
	assert.NoError(t, space.Validate(), "degenerate but non-empty uniform range is fine")
}
