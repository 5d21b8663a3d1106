// Package idgen generates run identifiers. A trip key may be reused after its
// instance finished, so every run gets its own id to tell runs of the same
// key apart. Callers should treat identifiers as opaque strings.
package idgen
