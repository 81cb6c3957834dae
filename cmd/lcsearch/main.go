// Copyright 2026 The LCSearch Authors. SPDX-License-Identifier: Apache-2.0

// lcsearch runs a randomized hyperparameter search for the two-branch
// light-curve classifier.
//
// The input is a gob container with the "X" (light-curve sequences), "metaX"
// (tabular metadata) and "y" (one-hot labels) tensors. Per-trial training
// histories are written as newline-delimited JSON once the search completes.
//
// Example:
//
//	lcsearch --input plasticc.gob --output search_results.json --seed 42 --trials 20
package main

import (
	"flag"
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/lightcurves/lcsearch"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagInput  = flag.String("input", "", "Dataset container with the \"X\", \"metaX\" and \"y\" tensors. Required.")
	flagOutput = flag.String("output", "search_results.json", "File the per-trial training histories are written to.")
	flagSeed   = flag.Int64("seed", -1, "Seed of the search random number generator. Negative values seed from the clock.")

	flagTrials    = flag.Int("trials", 2, "Number of trials, one sampled hyperparameter triple each.")
	flagEpochs    = flag.Int("epochs", 10, "Number of training epochs per trial.")
	flagBatchSize = flag.Int("batch_size", 32, "Batch size for training and evaluation.")
	flagVerbose   = flag.Bool("verbose", false, "Print per-epoch metrics and a progress bar per trial.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagInput == "" {
		flag.Usage()
		klog.Exit("missing required flag --input")
	}

	if err := exceptions.TryCatch[error](run); err != nil {
		klog.Exitf("lcsearch failed:\n%+v", err)
	}
}

func run() {
	ds := must.M1(lcsearch.LoadDataset(*flagInput))
	klog.V(1).Infof("loaded %d examples (%d metadata features, %d classes) from %q",
		ds.NumExamples(), ds.NumFeatures(), ds.NumClasses(), *flagInput)

	backend := backends.MustNew()
	klog.V(1).Infof("backend %q: %s", backend.Name(), backend.Description())

	cfg := lcsearch.DefaultConfig()
	cfg.NumTrials = *flagTrials
	cfg.NumEpochs = *flagEpochs
	cfg.BatchSize = *flagBatchSize
	cfg.Seed = *flagSeed
	cfg.Verbose = *flagVerbose

	results := must.M1(lcsearch.Search(backend, ds, cfg))
	must.M(lcsearch.SaveResults(*flagOutput, results))
	fmt.Println(lcsearch.SummaryTable(results))
	fmt.Printf("Wrote %d trial histories to %q\n", len(results), *flagOutput)
}
