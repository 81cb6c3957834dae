// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

package lcsearch

import (
	"encoding/gob"
	"math/rand"
	"os"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Entry names of the dataset container file. All three entries are required.
const (
	// ContainerKeySequence holds the light curves, shaped
	// `(float32)[numExamples, timeSteps, channels]`.
	ContainerKeySequence = "X"

	// ContainerKeyMetadata holds the tabular metadata features, shaped
	// `(float32)[numExamples, numFeatures]`.
	ContainerKeyMetadata = "metaX"

	// ContainerKeyLabels holds the one-hot labels, shaped
	// `(float32)[numExamples, numClasses]`.
	ContainerKeyLabels = "y"
)

// Dataset holds the three aligned tensors of a light-curve classification
// dataset. The leading (example) dimension must be the same for all three,
// and they are always shuffled and split together to preserve the alignment.
type Dataset struct {
	Sequence *tensors.Tensor
	Metadata *tensors.Tensor
	Labels   *tensors.Tensor
}

// NumExamples of the dataset, the shared leading dimension.
func (ds *Dataset) NumExamples() int { return ds.Sequence.Shape().Dimensions[0] }

// NumClasses of the one-hot labels.
func (ds *Dataset) NumClasses() int { return ds.Labels.Shape().Dimensions[1] }

// NumFeatures of the tabular metadata.
func (ds *Dataset) NumFeatures() int { return ds.Metadata.Shape().Dimensions[1] }

// Validate checks ranks, dtypes and the alignment of the leading dimensions.
func (ds *Dataset) Validate() error {
	for _, entry := range []struct {
		key  string
		t    *tensors.Tensor
		rank int
	}{
		{ContainerKeySequence, ds.Sequence, 3},
		{ContainerKeyMetadata, ds.Metadata, 2},
		{ContainerKeyLabels, ds.Labels, 2},
	} {
		if entry.t == nil {
			return errors.Errorf("dataset entry %q is nil", entry.key)
		}
		shape := entry.t.Shape()
		if shape.Rank() != entry.rank {
			return errors.Errorf("dataset entry %q must be rank %d, got shape %s",
				entry.key, entry.rank, shape)
		}
		if shape.DType != dtypes.Float32 {
			return errors.Errorf("dataset entry %q must be %s, got shape %s",
				entry.key, dtypes.Float32, shape)
		}
	}
	numExamples := ds.Sequence.Shape().Dimensions[0]
	if ds.Metadata.Shape().Dimensions[0] != numExamples || ds.Labels.Shape().Dimensions[0] != numExamples {
		return errors.Errorf("dataset entries are misaligned: %q has %d examples, %q has %d and %q has %d",
			ContainerKeySequence, numExamples,
			ContainerKeyMetadata, ds.Metadata.Shape().Dimensions[0],
			ContainerKeyLabels, ds.Labels.Shape().Dimensions[0])
	}
	return nil
}

// Save writes the dataset as a gob container with the three named entries.
// The format is the one read back by LoadDataset.
func (ds *Dataset) Save(filePath string) (err error) {
	if err = ds.Validate(); err != nil {
		return err
	}
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating dataset container %q", filePath)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "closing dataset container %q", filePath)
		}
	}()

	enc := gob.NewEncoder(f)
	entries := map[string]*tensors.Tensor{
		ContainerKeySequence: ds.Sequence,
		ContainerKeyMetadata: ds.Metadata,
		ContainerKeyLabels:   ds.Labels,
	}
	if err = enc.Encode(len(entries)); err != nil {
		return errors.Wrapf(err, "encoding dataset container %q", filePath)
	}
	for _, key := range []string{ContainerKeySequence, ContainerKeyMetadata, ContainerKeyLabels} {
		if err = enc.Encode(key); err != nil {
			return errors.Wrapf(err, "encoding entry name %q of dataset container %q", key, filePath)
		}
		if err = entries[key].GobSerialize(enc); err != nil {
			return errors.WithMessagef(err, "encoding entry %q of dataset container %q", key, filePath)
		}
	}
	return nil
}

// LoadDataset reads a dataset container written by Dataset.Save (or by any
// tool producing the same gob format). It fails if any of the required
// entries ("X", "metaX", "y") is absent, or if the entries are misaligned in
// their leading dimension.
func LoadDataset(filePath string) (*Dataset, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dataset container %q", filePath)
	}
	defer func() { _ = f.Close() }()

	dec := gob.NewDecoder(f)
	var numEntries int
	if err = dec.Decode(&numEntries); err != nil {
		return nil, errors.Wrapf(err, "decoding dataset container %q", filePath)
	}
	entries := make(map[string]*tensors.Tensor, numEntries)
	for range numEntries {
		var key string
		if err = dec.Decode(&key); err != nil {
			return nil, errors.Wrapf(err, "decoding entry name in dataset container %q", filePath)
		}
		t, err := tensors.GobDeserialize(dec)
		if err != nil {
			return nil, errors.WithMessagef(err, "decoding entry %q of dataset container %q", key, filePath)
		}
		entries[key] = t
	}

	for _, key := range []string{ContainerKeySequence, ContainerKeyMetadata, ContainerKeyLabels} {
		if _, found := entries[key]; !found {
			return nil, errors.Errorf("dataset container %q is missing entry %q", filePath, key)
		}
	}
	ds := &Dataset{
		Sequence: entries[ContainerKeySequence],
		Metadata: entries[ContainerKeyMetadata],
		Labels:   entries[ContainerKeyLabels],
	}
	if err = ds.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "dataset container %q", filePath)
	}
	return ds, nil
}

// ShuffleSplit draws one permutation of the examples from rng, applies it
// identically to the three tensors and splits the result at
// floor(trainFraction*numExamples). The returned splits are disjoint and
// together cover every example exactly once. Deterministic for a given rng
// state.
func (ds *Dataset) ShuffleSplit(rng *rand.Rand, trainFraction float64) (trainSplit, validationSplit *Dataset, err error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, errors.Errorf("trainFraction must be in (0, 1), got %g", trainFraction)
	}
	if err = ds.Validate(); err != nil {
		return nil, nil, err
	}
	numExamples := ds.NumExamples()
	permutation := rng.Perm(numExamples)
	numTrain := int(trainFraction * float64(numExamples))
	trainSplit, err = ds.gather(permutation[:numTrain])
	if err != nil {
		return nil, nil, err
	}
	validationSplit, err = ds.gather(permutation[numTrain:])
	if err != nil {
		return nil, nil, err
	}
	return trainSplit, validationSplit, nil
}

// gather builds a new Dataset from the given example indices, in order.
func (ds *Dataset) gather(indices []int) (*Dataset, error) {
	sequence, err := gatherRows(ds.Sequence, indices)
	if err != nil {
		return nil, err
	}
	metadata, err := gatherRows(ds.Metadata, indices)
	if err != nil {
		return nil, err
	}
	labels, err := gatherRows(ds.Labels, indices)
	if err != nil {
		return nil, err
	}
	return &Dataset{Sequence: sequence, Metadata: metadata, Labels: labels}, nil
}

// gatherRows copies the selected rows (leading axis) of t into a new tensor.
func gatherRows(t *tensors.Tensor, indices []int) (*tensors.Tensor, error) {
	dims := t.Shape().Dimensions
	rowSize := t.Shape().Size() / dims[0]
	flat := make([]float32, len(indices)*rowSize)
	err := t.ConstFlatData(func(data any) {
		src := data.([]float32)
		for ii, rowIdx := range indices {
			copy(flat[ii*rowSize:(ii+1)*rowSize], src[rowIdx*rowSize:(rowIdx+1)*rowSize])
		}
	})
	if err != nil {
		return nil, errors.WithMessage(err, "gathering rows")
	}
	newDims := slices.Clone(dims)
	newDims[0] = len(indices)
	return tensors.FromFlatDataAndDimensions(flat, newDims...), nil
}
