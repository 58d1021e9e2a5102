// Package dataprocessing turns raw IPO subscription tables into canonical
// subscription snapshots.
//
// # Architecture
//
// Every build is a straight pipeline:
//
//  1. Classifier: splits rows into data, header, totals and malformed rows
//     and reads the label plus positional numeric cells, tolerating a
//     leading serial-number column.
//  2. Normalizer: maps the free-text label onto a canonical category
//     (QIB, NII, bNII, sNII, Retail, Employee) using an ordered rule table.
//  3. Coercion: parses Indian-grouped share counts and "2.35x" style
//     ratios. Anything unparseable is zero.
//  4. Aggregator: sums per category, synthesizes NII from its sub-tiers
//     when the source has no NII row, and derives the grand total from the
//     base-level categories.
//  5. Assembler: attaches offering identity and the capture time.
//
// # Usage
//
//	engine := dataprocessing.NewEngine(dataprocessing.WithLogger(logger))
//	snap, err := engine.BuildFromTable(dataprocessing.MetaFor(offering), cells, time.Now())
//	if errors.Is(err, dataprocessing.ErrNoUsableData) {
//	    // nothing published yet; not the same as zero bids
//	}
//
// # Error Handling
//
// Bad input never fails a build. Malformed rows and totals rows are
// skipped, unparseable numbers become zero and labels that match no rule
// are logged at WARN and left out of the totals. The only error is
// ErrNoUsableData.
//
// The Engine holds no mutable state and may be shared by concurrent fetch
// workers.
package dataprocessing
