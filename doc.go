// Package chunkcpd segments long multivariate time series by detecting change
// points over overlapping chunks in parallel.
//
// A dataset is cut into chunks that share an overlap region with their
// neighbours. Every chunk is handed to a detector on a bounded worker pool and
// the local change points are projected back into the index space of the
// original dataset, where duplicates from the overlap regions collapse.
//
// # Quick Start
//
//	d, _ := detect.New(detect.Config{
//	    Algorithm:    detect.Pelt{Params: detect.Params{MinSize: 50, Jump: 5}},
//	    Model:        "l2",
//	    ChangePoints: 40,
//	    Penalty:      "bic",
//	    Backend:      rupture.Backend{},
//	})
//
//	seg, _ := chunkcpd.New(d,
//	    chunkcpd.WithChunkSize(40000),
//	    chunkcpd.WithOverlap(300),
//	    chunkcpd.WithMinDistance(100),
//	)
//
//	res, _ := seg.Segment(ctx, data)
//	labels := res.Labels(data.Rows())
//
// # Packages
//
//   - series: flat row-major sample matrix
//   - chunk, overlap: chunk layout and merging
//   - detect: detector configuration, penalties and filters
//   - rupture: change-point estimators and cost functions
//   - schedule: bounded parallel execution
//   - dataset, archive: CSV input and persisted results
//   - evaluate: quality metrics against ground truth
package chunkcpd
