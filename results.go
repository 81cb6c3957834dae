// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

package lcsearch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
)

// History holds the per-epoch metric curves of one trial, one value per
// epoch in each sequence.
type History struct {
	TrainLoss          []float64 `json:"train_loss"`
	TrainAccuracy      []float64 `json:"train_accuracy"`
	ValidationLoss     []float64 `json:"validation_loss"`
	ValidationAccuracy []float64 `json:"validation_accuracy"`
}

// TrialResult records one trial: its position in the run, the sampled
// hyperparameter triple and the training history. The explicit trial index
// keys the record, so two trials that happen to sample identical triples
// coexist instead of overwriting each other.
type TrialResult struct {
	Trial           int             `json:"trial"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	History         History         `json:"history"`
}

// SaveResults writes the trial results to filePath as newline-delimited JSON
// records, in trial order. It is called once, after all trials complete.
func SaveResults(filePath string, results []TrialResult) (err error) {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating results file %q", filePath)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "closing results file %q", filePath)
		}
	}()
	enc := json.NewEncoder(f)
	for _, result := range results {
		if err = enc.Encode(result); err != nil {
			return errors.Wrapf(err, "encoding trial %d to results file %q", result.Trial, filePath)
		}
	}
	return nil
}

// LoadResults reads back a file written by SaveResults, preserving the
// trial order.
func LoadResults(filePath string) ([]TrialResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening results file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	var results []TrialResult
	for {
		var result TrialResult
		err := dec.Decode(&result)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decoding results file %q", filePath)
		}
		results = append(results, result)
	}
	return results, nil
}

// SummaryTable renders the trials as a table: the sampled triple and the
// last epoch's validation metrics of each trial.
func SummaryTable(results []TrialResult) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		})
	table.Headers("Trial", "Learning Rate", "L2 Regularization", "Dropout", "Val Loss", "Val Accuracy")
	for _, result := range results {
		h := result.Hyperparameters
		valLoss, valAccuracy := "-", "-"
		if n := len(result.History.ValidationLoss); n > 0 {
			valLoss = fmt.Sprintf("%.4f", result.History.ValidationLoss[n-1])
		}
		if n := len(result.History.ValidationAccuracy); n > 0 {
			valAccuracy = fmt.Sprintf("%.2f%%", 100*result.History.ValidationAccuracy[n-1])
		}
		table.Row(
			fmt.Sprintf("%d", result.Trial),
			fmt.Sprintf("%.3g", h.LearningRate),
			fmt.Sprintf("%.3g", h.L2Regularization),
			fmt.Sprintf("%.2f", h.DropoutRate),
			valLoss,
			valAccuracy,
		)
	}
	return table.String()
}
