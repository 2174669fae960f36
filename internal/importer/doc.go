// Package importer loads price observation files into the price store.
//
// An import is three replaceable stages. An ItemReader yields observations
// from the input files, an ItemProcessor transforms each one (identity by
// default), and an ItemWriter commits them in chunks. Job wires the stages
// together and runs under an operations.Launcher, which tracks the run.
//
// Records are positional. The column mapping names which field holds the
// timestamp (epoch milliseconds), the symbol and the price. Delimited text
// and Excel workbooks are both accepted; the format follows the extension.
package importer
