// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

// Package lcsearch implements randomized hyperparameter search for a
// two-branch light-curve classifier: a 1D-convolutional branch over the
// light-curve sequences and a dense branch over the tabular metadata, merged
// and projected to class probabilities.
//
// Each trial independently samples a (learning rate, L2 regularization,
// dropout rate) triple, trains a fresh model for a fixed number of epochs
// and records the per-epoch loss and accuracy curves on the training and
// validation splits. Trials run serially; there is no feedback between
// trials, no early stopping and no retry -- any failure aborts the whole
// search.
package lcsearch

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config of a search run. The zero value is not usable, start from
// DefaultConfig.
type Config struct {
	// NumTrials to run. Each trial samples one hyperparameter triple and
	// trains one model. Default is 2.
	NumTrials int

	// NumEpochs each trial trains for, unconditionally. Default is 10.
	NumEpochs int

	// BatchSize used for training and evaluation. Default is 32.
	BatchSize int

	// TrainFraction of the shuffled examples that go to the training split;
	// the remainder is the validation split. Default is 0.8.
	TrainFraction float64

	// Space the hyperparameters are sampled from.
	Space SearchSpace

	// Seed of the search random number generator, which drives the
	// shuffle-and-split permutation, the hyperparameter sampling, the
	// per-epoch reshuffling and the model initialization. Negative values
	// seed from the clock, making the run non-reproducible.
	Seed int64

	// Verbose attaches a progress bar to each trial and prints per-epoch
	// metrics.
	Verbose bool
}

// DefaultConfig returns the documented default configuration.
func DefaultConfig() Config {
	return Config{
		NumTrials:     2,
		NumEpochs:     10,
		BatchSize:     32,
		TrainFraction: 0.8,
		Space:         DefaultSearchSpace(),
		Seed:          -1,
	}
}

// Validate the configuration.
func (cfg Config) Validate() error {
	if cfg.NumTrials <= 0 {
		return errors.Errorf("NumTrials must be > 0, got %d", cfg.NumTrials)
	}
	if cfg.NumEpochs <= 0 {
		return errors.Errorf("NumEpochs must be > 0, got %d", cfg.NumEpochs)
	}
	if cfg.BatchSize <= 0 {
		return errors.Errorf("BatchSize must be > 0, got %d", cfg.BatchSize)
	}
	if cfg.TrainFraction <= 0 || cfg.TrainFraction >= 1 {
		return errors.Errorf("TrainFraction must be in (0, 1), got %g", cfg.TrainFraction)
	}
	return cfg.Space.Validate()
}

func (cfg Config) newRand() *rand.Rand {
	if cfg.Seed < 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(cfg.Seed))
}

// Search runs the full trial loop on the given dataset and returns one
// TrialResult per trial, in execution order. Panics raised during graph
// construction (e.g. incompatible shapes) are returned as errors.
func Search(backend backends.Backend, ds *Dataset, cfg Config) ([]TrialResult, error) {
	var results []TrialResult
	var searchErr error
	if err := exceptions.TryCatch[error](func() {
		results, searchErr = runSearch(backend, ds, cfg)
	}); err != nil {
		return nil, err
	}
	return results, searchErr
}

func runSearch(backend backends.Backend, ds *Dataset, cfg Config) ([]TrialResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	rng := cfg.newRand()

	trainSplit, validationSplit, err := ds.ShuffleSplit(rng, cfg.TrainFraction)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("split %d examples into %d training and %d validation",
		ds.NumExamples(), trainSplit.NumExamples(), validationSplit.NumExamples())

	// Upload both splits to the backend once; the trials only differ in
	// their model, not in their data.
	trainBase, err := datasets.InMemoryFromData(backend, "training",
		[]any{trainSplit.Sequence, trainSplit.Metadata}, []any{trainSplit.Labels})
	if err != nil {
		return nil, errors.WithMessage(err, "uploading training split")
	}
	validationBase, err := datasets.InMemoryFromData(backend, "validation",
		[]any{validationSplit.Sequence, validationSplit.Metadata}, []any{validationSplit.Labels})
	if err != nil {
		return nil, errors.WithMessage(err, "uploading validation split")
	}
	trainDS := trainBase.Copy().BatchSize(cfg.BatchSize, false).Shuffle().WithRand(rng)
	trainEvalDS := trainBase.BatchSize(cfg.BatchSize, false)
	validationEvalDS := validationBase.BatchSize(cfg.BatchSize, false)
	klog.V(1).Infof("device cache: %s training, %s validation",
		humanize.Bytes(uint64(trainBase.Memory())), humanize.Bytes(uint64(validationBase.Memory())))

	results := make([]TrialResult, 0, cfg.NumTrials)
	for trial := range cfg.NumTrials {
		hparams := cfg.Space.Sample(rng)
		fmt.Printf("Trial %d/%d: %s\n", trial+1, cfg.NumTrials, hparams)
		history, err := cfg.runTrial(backend, hparams, ds.NumClasses(), rng.Int63(),
			trainDS, trainEvalDS, validationEvalDS)
		if err != nil {
			return nil, errors.WithMessagef(err, "trial %d (%s)", trial, hparams)
		}
		results = append(results, TrialResult{
			Trial:           trial,
			Hyperparameters: hparams,
			History:         history,
		})
	}
	return results, nil
}

// runTrial trains one freshly initialized model for the configured number of
// epochs and returns its four metric curves.
func (cfg Config) runTrial(backend backends.Backend, hparams Hyperparameters, numClasses int,
	seed int64, trainDS, trainEvalDS, validationEvalDS train.Dataset) (History, error) {
	ctx := NewTrialContext(hparams, numClasses, seed)

	meanAccuracy := NewMeanCategoricalAccuracy("Mean Accuracy", "#acc")
	movingAccuracy := NewMovingAverageCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)
	trainer := train.NewTrainer(backend, ctx, ClassifierGraph,
		losses.CategoricalCrossEntropy,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracy}, // trainMetrics
		[]metrics.Interface{meanAccuracy})   // evalMetrics

	loop := train.NewLoop(trainer)
	if cfg.Verbose {
		commandline.AttachProgressBar(loop)
	}

	var history History
	for epoch := range cfg.NumEpochs {
		if _, err := loop.RunEpochs(trainDS, 1); err != nil {
			return History{}, errors.WithMessagef(err, "training epoch %d", epoch)
		}
		trainLoss, trainAccuracy, err := evalLossAndAccuracy(trainer, trainEvalDS)
		if err != nil {
			return History{}, errors.WithMessagef(err, "epoch %d", epoch)
		}
		validationLoss, validationAccuracy, err := evalLossAndAccuracy(trainer, validationEvalDS)
		if err != nil {
			return History{}, errors.WithMessagef(err, "epoch %d", epoch)
		}
		history.TrainLoss = append(history.TrainLoss, trainLoss)
		history.TrainAccuracy = append(history.TrainAccuracy, trainAccuracy)
		history.ValidationLoss = append(history.ValidationLoss, validationLoss)
		history.ValidationAccuracy = append(history.ValidationAccuracy, validationAccuracy)
		if cfg.Verbose {
			fmt.Printf("\tepoch %d/%d: loss=%.4f accuracy=%.2f%% val_loss=%.4f val_accuracy=%.2f%%\n",
				epoch+1, cfg.NumEpochs, trainLoss, 100*trainAccuracy, validationLoss, 100*validationAccuracy)
		}
	}
	return history, nil
}

// evalLossAndAccuracy evaluates the trainer on the dataset and picks the
// loss and accuracy values by their metric type.
func evalLossAndAccuracy(trainer *train.Trainer, ds train.Dataset) (loss, accuracy float64, err error) {
	values, err := trainer.Eval(ds)
	if err != nil {
		return 0, 0, errors.WithMessagef(err, "evaluating on %q", ds.Name())
	}
	for ii, desc := range trainer.EvalMetrics() {
		switch desc.MetricType() {
		case metrics.LossMetricType:
			loss = shapes.ConvertTo[float64](values[ii].Value())
		case metrics.AccuracyMetricType:
			accuracy = shapes.ConvertTo[float64](values[ii].Value())
		}
	}
	return loss, accuracy, nil
}
