// ABOUTME: Rendering of a dependency closure as a sorted listing
// ABOUTME: One line per dependency with its lifecycle qualifier

package resolver

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nainya/docdeps/pkg/document"
)

// Lifecycle qualifiers
const (
	QualifierSuperseded = "[S]"
	QualifierWithdrawn  = "[W]"
)

// Entry is one line of the dependency listing
type Entry struct {
	DocID     string
	Label     string
	Title     string
	Qualifier string // [S], [W] or empty
}

// String renders "<id> (<label>, <title>) <qualifier>"
func (e Entry) String() string {
	return fmt.Sprintf("%s (%s, %s) %s", e.DocID, e.Label, e.Title, e.Qualifier)
}

// QualifierFor derives the qualifier of a status; superseded wins over withdrawn
func QualifierFor(status document.Status) string {
	switch {
	case status.Superseded:
		return QualifierSuperseded
	case status.Withdrawn:
		return QualifierWithdrawn
	default:
		return ""
	}
}

// Entries builds the listing for result in ascending identifier order
func Entries(store *document.Store, result *Result) ([]Entry, error) {
	ids := result.Sorted()
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		doc, err := store.Get(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			DocID:     doc.DocID,
			Label:     doc.DocLabel,
			Title:     doc.DocTitle,
			Qualifier: QualifierFor(doc.Status),
		})
	}
	return entries, nil
}

// WriteListing writes one line per entry
func WriteListing(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintln(bw, e.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
