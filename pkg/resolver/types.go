// ABOUTME: Dependency resolution options, results and errors
// ABOUTME: Missing-reference policy and the dependency set

package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nainya/docdeps/pkg/document"
)

// MissingPolicy decides what happens when a reference names an unknown document
type MissingPolicy string

const (
	MissingFail MissingPolicy = "fail" // Abort the resolution (default)
	MissingSkip MissingPolicy = "skip" // Record the id in Result.Missing and continue
)

// ParseMissingPolicy maps a policy name onto a MissingPolicy
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case MissingFail, "":
		return MissingFail, nil
	case MissingSkip:
		return MissingSkip, nil
	}
	return "", fmt.Errorf("unknown missing-reference policy %q (want fail or skip)", s)
}

// Options controls one resolution
type Options struct {
	Category  document.Category // Reference category to follow
	OnMissing MissingPolicy     // Dangling reference handling
	MaxDepth  int               // Maximum reference hops, 0 for unlimited
}

// DefaultOptions follows normative references without a depth limit
func DefaultOptions() Options {
	return Options{
		Category:  document.Normative,
		OnMissing: MissingFail,
	}
}

// Result is the dependency closure of one seed
type Result struct {
	Seed         string
	Category     document.Category
	Dependencies map[string]struct{} // Reachable identifiers, seed excluded unless reached via a cycle
	Missing      []string            // Dangling identifiers skipped under MissingSkip, sorted
}

// Len returns the number of dependencies
func (r *Result) Len() int {
	return len(r.Dependencies)
}

// Contains reports whether docID is a dependency
func (r *Result) Contains(docID string) bool {
	_, ok := r.Dependencies[docID]
	return ok
}

// Sorted returns the dependencies in ascending identifier order
func (r *Result) Sorted() []string {
	ids := make([]string, 0, len(r.Dependencies))
	for id := range r.Dependencies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DanglingReferenceError reports a reference to a document absent from the store
type DanglingReferenceError struct {
	Ref          string // Missing identifier
	ReferencedBy string // Document whose reference list names Ref
	Err          error
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling reference %s from %s: %v", e.Ref, e.ReferencedBy, e.Err)
}

func (e *DanglingReferenceError) Unwrap() error {
	return e.Err
}
