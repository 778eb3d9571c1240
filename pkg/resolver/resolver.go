// ABOUTME: Transitive dependency closure over the document store
// ABOUTME: Explicit worklist traversal with a visited-set guard

package resolver

import (
	"fmt"
	"sort"

	"github.com/nainya/docdeps/pkg/document"
)

// Resolver computes dependency closures against one immutable store
type Resolver struct {
	store *document.Store
}

// New creates a resolver over store
func New(store *document.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve is shorthand for New(store).Resolve(seedID, opts)
func Resolve(store *document.Store, seedID string, opts Options) (*Result, error) {
	return New(store).Resolve(seedID, opts)
}

type pending struct {
	docID string
	depth int
}

// Resolve returns every identifier reachable from seedID through references
// of opts.Category. The seed is only included when a cycle leads back to it.
func (r *Resolver) Resolve(seedID string, opts Options) (*Result, error) {
	if opts.Category == "" {
		opts.Category = document.Normative
	}
	if opts.OnMissing == "" {
		opts.OnMissing = MissingFail
	}
	if opts.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must not be negative: %d", opts.MaxDepth)
	}

	if _, err := r.store.Get(seedID); err != nil {
		return nil, err
	}

	result := &Result{
		Seed:         seedID,
		Category:     opts.Category,
		Dependencies: make(map[string]struct{}),
	}
	missing := make(map[string]struct{})

	// FIFO so that a depth limit keeps the shallowest discovery of each id
	queue := []pending{{docID: seedID}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if opts.MaxDepth > 0 && next.depth >= opts.MaxDepth {
			continue
		}

		doc, err := r.store.Get(next.docID)
		if err != nil {
			return nil, err
		}

		refs, ok := doc.Refs(opts.Category)
		if !ok {
			continue
		}

		for _, ref := range refs {
			if _, seen := result.Dependencies[ref]; seen {
				continue
			}
			if _, seen := missing[ref]; seen {
				continue
			}

			if !r.store.Has(ref) {
				if opts.OnMissing == MissingFail {
					return nil, &DanglingReferenceError{
						Ref:          ref,
						ReferencedBy: doc.DocID,
						Err:          &document.NotFoundError{DocID: ref},
					}
				}
				missing[ref] = struct{}{}
				continue
			}

			result.Dependencies[ref] = struct{}{}
			queue = append(queue, pending{docID: ref, depth: next.depth + 1})
		}
	}

	if len(missing) > 0 {
		result.Missing = make([]string, 0, len(missing))
		for id := range missing {
			result.Missing = append(result.Missing, id)
		}
		sort.Strings(result.Missing)
	}

	return result, nil
}
