// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

package lcsearch

// This file implements the model factory: a fixed two-branch topology whose
// learning rate, L2 regularization and dropout rate come from the context
// hyperparameters set by NewTrialContext.

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/layers/batchnorm"
	"github.com/gomlx/gomlx/pkg/ml/layers/regularizers"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
)

// ParamNumClasses is the context hyperparameter with the width of the
// readout layer.
const ParamNumClasses = "num_classes"

// NewTrialContext returns a fresh context for one trial: RNG state seeded,
// the sampled hyperparameters installed as context params. L2 regularization
// is scoped to the readout layer only, the single regularized layer of the
// topology.
func NewTrialContext(hparams Hyperparameters, numClasses int, seed int64) *context.Context {
	ctx := context.New()
	ctx.SetRNGStateFromSeed(seed)
	ctx.SetParams(map[string]any{
		ParamNumClasses:              numClasses,
		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: hparams.LearningRate,
		layers.ParamDropoutRate:      hparams.DropoutRate,
	})
	ctx.In("model").In("readout").SetParam(regularizers.ParamL2, hparams.L2Regularization)
	return ctx
}

// ClassifierGraph implements train.ModelFn. It takes two inputs -- the
// light-curve sequences, shaped `[batchSize, timeSteps, channels]`, and the
// tabular metadata, shaped `[batchSize, numFeatures]` -- and returns the
// sigmoid-activated class probabilities, shaped `[batchSize, numClasses]`.
//
// Incompatible input shapes panic during graph construction.
func ClassifierGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec // The two inputs are fixed.
	ctx = ctx.In("model")
	sequence, metadata := inputs[0], inputs[1]
	g := sequence.Graph()
	dtype := sequence.DType()
	batchSize := sequence.Shape().Dimensions[0]
	numClasses := context.GetParamOr(ctx, ParamNumClasses, 0)
	if numClasses <= 0 {
		exceptions.Panicf("context param %q must be set to a positive value, got %d",
			ParamNumClasses, numClasses)
	}

	convStage := func(stageCtx *context.Context, x *Node) *Node {
		x = layers.Convolution(stageCtx.In("conv"), x).Filters(8).KernelSize(3).PadSame().Done()
		x = batchnorm.New(stageCtx.In("norm"), x, -1).Done()
		x = activations.Relu(x)
		x = MaxPool(x).Window(2).Done()
		return x
	}
	// Both stages read from the raw sequence input and only the second one
	// propagates. The first stage is unused downstream but kept: its
	// variables consume initializer RNG draws, so removing it would change
	// every weight initialized after it.
	_ = convStage(ctx.In("lc_stage_0"), sequence)
	lc := convStage(ctx.In("lc_stage_1"), sequence)
	lc = Reshape(lc, batchSize, -1)
	lc = layers.Dense(ctx.In("lc_embedding"), lc, true, 32)
	lc.AssertDims(batchSize, 32)

	// Metadata branch: parallel projections at widths 4, 16 and 64, each
	// normalized, all from the same raw input. Only the widest one feeds the
	// trunk; the others are kept unused for the same reason as lc_stage_0.
	var meta *Node
	for _, width := range []int{4, 16, 64} {
		projCtx := ctx.Inf("meta_projection_%d", width)
		proj := layers.Dense(projCtx.In("dense"), metadata, true, width)
		meta = batchnorm.New(projCtx.In("norm"), proj, -1).Done()
	}
	meta = layers.Dense(ctx.In("meta_embedding"), meta, true, 32)
	meta.AssertDims(batchSize, 32)

	logits := Concatenate([]*Node{lc, meta}, -1)
	dropoutRate := context.GetParamOr(ctx, layers.ParamDropoutRate, 0.0)
	var dropoutNode *Node
	if dropoutRate > 0 {
		dropoutNode = Scalar(g, dtype, dropoutRate)
	}
	for ii, width := range []int{64, 128, 256} {
		logits = layers.Dense(ctx.Inf("%03d_dense", ii), logits, true, width)
		logits = activations.Relu(logits)
		if dropoutNode != nil {
			logits = layers.DropoutNormalize(ctx.Inf("%03d_dropout", ii), logits, dropoutNode, true)
		}
	}
	logits = layers.Dense(ctx.In("readout"), logits, true, numClasses)
	probabilities := Sigmoid(logits)
	probabilities.AssertDims(batchSize, numClasses)
	return []*Node{probabilities}
}
