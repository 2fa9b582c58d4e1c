// Package search provides an in-process token index for published
// explorations, collections and blog posts.
package search

import (
	"slices"
	"strings"
	"sync"
	"unicode"
)

// Index names.
const (
	IndexExplorations      = "explorations"
	IndexCollections       = "collections"
	IndexBlogPostSummaries = "blog-post-summaries"
)

// Indexes lists every index managed by the service.
var Indexes = []string{IndexExplorations, IndexCollections, IndexBlogPostSummaries}

type document struct {
	id     string
	tokens map[string]struct{}
}

// Index is a set of named token indexes. Documents match a query when they
// contain every query token.
type Index struct {
	mu      sync.RWMutex
	indexes map[string][]document
}

// New creates an empty Index.
func New() *Index {
	return &Index{indexes: map[string][]document{}}
}

func tokenize(texts ...string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, text := range texts {
		for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

// Add indexes a document, replacing any document with the same id.
func (x *Index) Add(index, id string, text ...string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	docs := slices.DeleteFunc(x.indexes[index], func(d document) bool { return d.id == id })
	x.indexes[index] = append(docs, document{id: id, tokens: tokenize(text...)})
}

// Remove drops a document from an index.
func (x *Index) Remove(index, id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.indexes[index] = slices.DeleteFunc(x.indexes[index], func(d document) bool { return d.id == id })
}

// Search returns the ids of documents matching every token of query, in
// indexing order. An empty query matches every document.
func (x *Index) Search(index, query string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	terms := tokenize(query)
	ids := []string{}
	for _, d := range x.indexes[index] {
		matched := true
		for term := range terms {
			if _, ok := d.tokens[term]; !ok {
				matched = false
				break
			}
		}
		if matched {
			ids = append(ids, d.id)
		}
	}
	return ids
}

// Clear removes every document from an index.
func (x *Index) Clear(index string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.indexes, index)
}

// Size returns the number of documents in an index.
func (x *Index) Size(index string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.indexes[index])
}
