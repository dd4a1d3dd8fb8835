// Package dataprocessing implements the battery data pipeline: parsing raw
// CSV/XLSX content into a typed columnar table, classifying columns into
// semantic signal categories, normalizing tables for analysis and computing
// summary statistics.
//
// The classifier applies its pattern rules in a fixed precedence order and
// the first matching rule wins; reordering the rules changes how ambiguous
// names are classified and is therefore observable behavior, not an
// implementation detail.
//
// None of the functions in this package fail on malformed-but-structurally
// valid tables. Parsing is the only fallible step; everything downstream
// degrades to empty results instead of returning errors.
package dataprocessing
