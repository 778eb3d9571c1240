// ABOUTME: Document data model for the standards corpus
// ABOUTME: Defines Document, Status and typed reference lists

package document

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category names a reference relation between documents
type Category string

const (
	Normative     Category = "normative"     // Mandatory dependency
	Bibliographic Category = "bibliographic" // Informational citation
)

// Categories lists the recognised reference categories
var Categories = []Category{Normative, Bibliographic}

// ParseCategory maps a category name onto a Category
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case Normative:
		return Normative, nil
	case Bibliographic:
		return Bibliographic, nil
	}
	return "", fmt.Errorf("unknown reference category %q (want normative or bibliographic)", s)
}

// Document represents one standards document in the corpus
type Document struct {
	DocID      string     `json:"docId"`      // Unique document identifier
	DocLabel   string     `json:"docLabel"`   // Short human-readable label
	DocTitle   string     `json:"docTitle"`   // Human-readable title
	DocType    string     `json:"docType"`    // Standard, Recommended Practice, ...
	Publisher  string     `json:"publisher"`  // Publishing body
	Group      string     `json:"group"`      // Owning committee or group
	Status     Status     `json:"status"`     // Lifecycle flags
	References References `json:"references"` // Typed reference lists, may be nil
}

// Status holds lifecycle flags; an absent flag reads as false
type Status struct {
	Active        bool `json:"active"`
	LatestVersion bool `json:"latestVersion"`
	Superseded    bool `json:"superseded"`
	Withdrawn     bool `json:"withdrawn"`
	Stabilized    bool `json:"stabilized"`
}

// References maps a category name to the ordered identifiers it references
type References map[Category][]string

// UnmarshalJSON decodes reference lists, skipping "$meta" annotations
func (r *References) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*r = nil
		return nil
	}

	refs := make(References, len(raw))
	for key, val := range raw {
		if strings.HasSuffix(key, "$meta") {
			continue
		}
		var ids []string
		if err := json.Unmarshal(val, &ids); err != nil {
			return fmt.Errorf("references.%s: %w", key, err)
		}
		refs[Category(key)] = ids
	}
	*r = refs
	return nil
}

// Refs returns the references of one category and whether the category is present
func (d *Document) Refs(cat Category) ([]string, bool) {
	if d.References == nil {
		return nil, false
	}
	ids, ok := d.References[cat]
	return ids, ok
}
