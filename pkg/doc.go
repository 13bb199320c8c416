// Package pkg provides the core libraries for qrsheet label sheets.
//
// # Overview
//
// qrsheet turns a contiguous range of numeric identifiers into a printable
// PDF: one captioned QR code per identifier, packed in a grid onto
// letter-sized pages. The pkg directory is organized by stage:
//
//  1. [geometry] - Page layout arithmetic (grid, page count, page ranges)
//  2. [tile] - Lazy QR tile production with decimal captions
//  3. [pack] - Row-major page filling from a tile source
//  4. [page] - Single-page PDF documents and their records
//  5. [merge] - Strict or lenient document concatenation
//  6. [publish] - Optional upload to gs:// or s3://
//  7. [pipeline] - Orchestration (produce → pack → write → merge → publish)
//
// Supporting packages: [cache] (tile cache backends), [errors] (error
// codes), [fonts] (caption face), [observability] (hooks) and [buildinfo].
//
// # Architecture
//
// The data flow of one run:
//
//	identifier range
//	       ↓
//	  [tile] Producer (one tile per Next call)
//	       ↓
//	  [pack] Packer (fills one page canvas)
//	       ↓
//	  [page] Writer (<prefix>_<first>_through_<last>.pdf)
//	       ↓
//	  [merge] Merger (<prefix>_<start>_through_<last>.pdf)
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, err := runner.Execute(ctx, pipeline.Options{Start: 100001, Count: 50})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.OutputPath)
package pkg
