// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

package lcsearch

import (
	"encoding/gob"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticDataset builds a dataset with normal-distributed features and
// random one-hot labels, deterministic for a given seed.
func syntheticDataset(seed int64, numExamples, timeSteps, channels, numFeatures, numClasses int) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	sequence := make([]float32, numExamples*timeSteps*channels)
	for ii := range sequence {
		sequence[ii] = float32(rng.NormFloat64())
	}
	metadata := make([]float32, numExamples*numFeatures)
	for ii := range metadata {
		metadata[ii] = float32(rng.NormFloat64())
	}
	labels := make([]float32, numExamples*numClasses)
	for example := range numExamples {
		labels[example*numClasses+rng.Intn(numClasses)] = 1
	}
	return &Dataset{
		Sequence: tensors.FromFlatDataAndDimensions(sequence, numExamples, timeSteps, channels),
		Metadata: tensors.FromFlatDataAndDimensions(metadata, numExamples, numFeatures),
		Labels:   tensors.FromFlatDataAndDimensions(labels, numExamples, numClasses),
	}
}

// indexedDataset builds a dataset where every element of example ii holds the
// value ii, so a shuffled row can be traced back to its original position.
func indexedDataset(numExamples, timeSteps, numFeatures, numClasses int) *Dataset {
	fill := func(numCols int) []float32 {
		flat := make([]float32, numExamples*numCols)
		for example := range numExamples {
			for col := range numCols {
				flat[example*numCols+col] = float32(example)
			}
		}
		return flat
	}
	return &Dataset{
		Sequence: tensors.FromFlatDataAndDimensions(fill(timeSteps), numExamples, timeSteps, 1),
		Metadata: tensors.FromFlatDataAndDimensions(fill(numFeatures), numExamples, numFeatures),
		Labels:   tensors.FromFlatDataAndDimensions(fill(numClasses), numExamples, numClasses),
	}
}

func tensorFlatValues(t *testing.T, tensor *tensors.Tensor) []float32 {
	var flat []float32
	require.NoError(t, tensor.ConstFlatData(func(data any) {
		flat = slices.Clone(data.([]float32))
	}))
	return flat
}

// rowIndices recovers the original example index of each row of an
// indexedDataset tensor.
func rowIndices(t *testing.T, tensor *tensors.Tensor) []int {
	dims := tensor.Shape().Dimensions
	rowSize := tensor.Shape().Size() / dims[0]
	flat := tensorFlatValues(t, tensor)
	indices := make([]int, dims[0])
	for row := range indices {
		indices[row] = int(flat[row*rowSize])
		for col := range rowSize {
			require.Equal(t, flat[row*rowSize], flat[row*rowSize+col],
				"row %d is not constant, rows were mixed during the shuffle", row)
		}
	}
	return indices
}

func TestDatasetValidate(t *testing.T) {
	ds := syntheticDataset(0, 10, 16, 1, 4, 3)
	require.NoError(t, ds.Validate())

	misaligned := &Dataset{
		Sequence: ds.Sequence,
		Metadata: ds.Metadata,
		Labels:   tensors.FromFlatDataAndDimensions(make([]float32, 9*3), 9, 3),
	}
	assert.ErrorContains(t, misaligned.Validate(), "misaligned")

	wrongRank := &Dataset{
		Sequence: ds.Sequence,
		Metadata: tensors.FromFlatDataAndDimensions(make([]float32, 10*4*1), 10, 4, 1),
		Labels:   ds.Labels,
	}
	assert.ErrorContains(t, wrongRank.Validate(), "rank")

	wrongDType := &Dataset{
		Sequence: ds.Sequence,
		Metadata: tensors.FromFlatDataAndDimensions(make([]float64, 10*4), 10, 4),
		Labels:   ds.Labels,
	}
	assert.Error(t, wrongDType.Validate())

	var nilEntry Dataset
	assert.ErrorContains(t, nilEntry.Validate(), "nil")
}

func TestShuffleSplitCoverage(t *testing.T) {
	// 100 splits evenly at 0.8; 101 exercises the floor.
	for _, numExamples := range []int{100, 101} {
		ds := indexedDataset(numExamples, 16, 4, 3)
		rng := rand.New(rand.NewSource(1))
		trainSplit, validationSplit, err := ds.ShuffleSplit(rng, 0.8)
		require.NoError(t, err)

		wantTrain := int(0.8 * float64(numExamples))
		require.Equal(t, wantTrain, trainSplit.NumExamples())
		require.Equal(t, numExamples-wantTrain, validationSplit.NumExamples())

		// Every example lands in exactly one split, and the three tensors of
		// each split stay aligned row by row.
		seen := make([]bool, numExamples)
		for _, split := range []*Dataset{trainSplit, validationSplit} {
			sequenceIdx := rowIndices(t, split.Sequence)
			require.Equal(t, sequenceIdx, rowIndices(t, split.Metadata))
			require.Equal(t, sequenceIdx, rowIndices(t, split.Labels))
			for _, idx := range sequenceIdx {
				require.False(t, seen[idx], "example %d appears in both splits", idx)
				seen[idx] = true
			}
		}
		for idx, found := range seen {
			require.True(t, found, "example %d was dropped by the split", idx)
		}
	}
}

func TestShuffleSplitDeterminism(t *testing.T) {
	ds := indexedDataset(50, 8, 4, 3)
	trainA, validationA, err := ds.ShuffleSplit(rand.New(rand.NewSource(17)), 0.8)
	require.NoError(t, err)
	trainB, validationB, err := ds.ShuffleSplit(rand.New(rand.NewSource(17)), 0.8)
	require.NoError(t, err)
	assert.Equal(t, rowIndices(t, trainA.Sequence), rowIndices(t, trainB.Sequence))
	assert.Equal(t, rowIndices(t, validationA.Sequence), rowIndices(t, validationB.Sequence))
}

func TestShuffleSplitBadFraction(t *testing.T) {
	ds := indexedDataset(10, 8, 4, 3)
	rng := rand.New(rand.NewSource(0))
	for _, fraction := range []float64{0, 1, -0.5, 1.5} {
		_, _, err := ds.ShuffleSplit(rng, fraction)
		assert.Error(t, err, "trainFraction=%g", fraction)
	}
}

func TestDatasetSaveLoadRoundTrip(t *testing.T) {
	ds := syntheticDataset(3, 20, 16, 1, 5, 3)
	filePath := filepath.Join(t.TempDir(), "dataset.gob")
	require.NoError(t, ds.Save(filePath))

	loaded, err := LoadDataset(filePath)
	require.NoError(t, err)
	for _, pair := range []struct{ want, got *tensors.Tensor }{
		{ds.Sequence, loaded.Sequence},
		{ds.Metadata, loaded.Metadata},
		{ds.Labels, loaded.Labels},
	} {
		assert.Equal(t, pair.want.Shape().Dimensions, pair.got.Shape().Dimensions)
		assert.Equal(t, tensorFlatValues(t, pair.want), tensorFlatValues(t, pair.got))
	}
}

func TestLoadDatasetMissingEntry(t *testing.T) {
	ds := syntheticDataset(5, 10, 8, 1, 4, 3)
	filePath := filepath.Join(t.TempDir(), "incomplete.gob")
	f, err := os.Create(filePath)
	require.NoError(t, err)
	enc := gob.NewEncoder(f)
	require.NoError(t, enc.Encode(2))
	require.NoError(t, enc.Encode(ContainerKeySequence))
	require.NoError(t, ds.Sequence.GobSerialize(enc))
	require.NoError(t, enc.Encode(ContainerKeyLabels))
	require.NoError(t, ds.Labels.GobSerialize(enc))
	require.NoError(t, f.Close())

	_, err = LoadDataset(filePath)
	require.ErrorContains(t, err, "missing entry")
	require.ErrorContains(t, err, ContainerKeyMetadata)
}
