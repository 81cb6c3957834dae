// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

package lcsearch

import (
	"fmt"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gopjrt/dtypes"
)

// CategoricalAccuracyGraph returns the fraction of examples for which
// argmax(predictions) picks the one-hot labeled class. It works for both
// probabilities and logits; ties are counted as misses.
//
// Labels are expected one-hot (same shape as predictions), as opposed to the
// sparse (integer class) encoding of metrics.SparseCategoricalAccuracyGraph.
func CategoricalAccuracyGraph(_ *context.Context, labels, predictions []*Node) *Node {
	predictions0, labels0 := predictions[0], labels[0]
	choices := ArgMax(predictions0, -1, dtypes.Int32)
	truth := ArgMax(labels0, -1, dtypes.Int32)
	correct := ConvertDType(Equal(choices, truth), predictions0.DType())
	return ReduceAllMean(correct)
}

func accuracyPPrint(value *tensors.Tensor) string {
	return fmt.Sprintf("%.2f%%", 100.0*shapes.ConvertTo[float64](value.Value()))
}

// NewMeanCategoricalAccuracy returns a mean accuracy metric over one-hot
// labels with the given names.
func NewMeanCategoricalAccuracy(name, shortName string) metrics.Interface {
	return metrics.NewMeanMetric(name, shortName, metrics.AccuracyMetricType,
		CategoricalAccuracyGraph, accuracyPPrint)
}

// NewMovingAverageCategoricalAccuracy returns an exponentially moving
// average of the accuracy over one-hot labels. A typical newExampleWeight is
// 0.01: the smaller the value, the slower the average moves.
func NewMovingAverageCategoricalAccuracy(name, shortName string, newExampleWeight float64) metrics.Interface {
	return metrics.NewExponentialMovingAverageMetric(name, shortName, metrics.AccuracyMetricType,
		CategoricalAccuracyGraph, accuracyPPrint, newExampleWeight)
}
