// ABOUTME: Write-once in-memory index of the document corpus
// ABOUTME: O(1) lookup from docId to Document

package document

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is matched by every lookup miss
var ErrNotFound = errors.New("document not found")

// NotFoundError reports the identifier that was missing from the store
type NotFoundError struct {
	DocID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.DocID)
}

// Is lets errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Store indexes documents by DocID. It has no mutation API.
type Store struct {
	docs       map[string]*Document
	overwrites int
}

// Build indexes every document by DocID.
// A later record with a duplicate DocID replaces the earlier one.
func Build(docs []*Document) *Store {
	s := &Store{docs: make(map[string]*Document, len(docs))}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if _, dup := s.docs[doc.DocID]; dup {
			s.overwrites++
		}
		s.docs[doc.DocID] = doc
	}
	return s
}

// Get retrieves a document by ID
func (s *Store) Get(docID string) (*Document, error) {
	doc, ok := s.docs[docID]
	if !ok {
		return nil, &NotFoundError{DocID: docID}
	}
	return doc, nil
}

// Has reports whether docID is indexed
func (s *Store) Has(docID string) bool {
	_, ok := s.docs[docID]
	return ok
}

// Len returns the number of indexed documents
func (s *Store) Len() int {
	return len(s.docs)
}

// Overwrites returns how many records were replaced by a duplicate DocID during Build
func (s *Store) Overwrites() int {
	return s.overwrites
}

// IDs returns all indexed identifiers in ascending order
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
