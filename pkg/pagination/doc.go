// Package pagination pulls every record of a Feature Server layer into a CSV
// file by walking the layer in OBJECTID order.
//
// The service caps how many features a query returns, so the extractor asks
// for "OBJECTID > cursor", appends the page, and moves the cursor to the
// largest OBJECTID it just wrote. An empty page ends the run:
//
//	fetcher := agoClient.NewFeatureQuery(queryURL, token.Value)
//	cfg := pagination.DefaultConfig()
//	cfg.DateColumns = []string{"ISSUEDATE"}
//	result, err := pagination.Pull(ctx, fetcher, "TRADE_LICENSES_PWD.csv", cfg)
//
// The extractor:
//   - issues one request at a time
//   - writes the header with the first page and flushes after every page
//   - coerces configured epoch-millisecond columns to timestamps
//   - stops on the first error, leaving the rows already written on disk
//
// Because the cursor only moves forward and the predicate is strict, every
// record is written exactly once and pages appear in ascending OBJECTID order.
package pagination
