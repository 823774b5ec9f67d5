// Package references turns raw vector search results into the context a
// text generator consumes: a concatenated context string and a ranked,
// deduplicated list of source documents.
//
// Everything here is pure and deterministic; the same input always yields
// the same output.
package references
