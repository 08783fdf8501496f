// Package extractors maps the rows of detected tables to canonical records.
//
// One extractor exists per record family. Each streams only the columns its
// schema profile maps, decodes values with the shared Decoder, and counts
// rows it cannot map instead of failing. Decoding helpers are exported for
// the markup extractor, which produces the same records from XML reports.
package extractors
