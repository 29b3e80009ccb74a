// Package document loads and caches raw schema documents by canonical
// identifier. A document root is a generic decoded tree (map, sequence,
// scalar); the engine never mutates it after loading.
package document

import "strings"

// ID is a canonical document identifier: a cleaned path relative to the
// loader root, or an absolute URL for external documents.
type ID string

// IsURL reports whether the identifier addresses an external document.
func (id ID) IsURL() bool {
	return isHTTP(string(id))
}

// Document pairs a canonical identifier with its decoded root tree.
type Document struct {
	ID   ID
	Root any
}

// Request describes a document resolution request. BaseID is the document the
// location was written in; it is empty for the root document.
type Request struct {
	BaseID   ID
	Location string
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
