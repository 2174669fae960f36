// Package analytics computes read-only views over the price store: the
// normalized spread (max-min)/min per symbol and min/max/oldest/newest
// statistics per symbol and time window.
//
// Operations over all symbols list the allowed symbols once and compute
// each one concurrently, bounded by WithConcurrency. A symbol whose spread
// is undefined because its minimum price is zero is logged and left out of
// the result. A store failure for any symbol fails the whole operation.
package analytics
