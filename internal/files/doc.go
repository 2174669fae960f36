// Package files resolves the importer's input files.
//
// Discovery expands a glob pattern inside a source directory into a sorted
// list of regular files and tags each one with the format its reader should
// use, delimited text or an Excel workbook.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/srv/prices")
//	inputs, err := discovery.Resolve("incoming", "*_values.csv")
package files
