// ABOUTME: Corpus loading from the JSON documents file
// ABOUTME: Decodes records and builds the Store in one scoped read

package document

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads a JSON array of document records
func Decode(r io.Reader) ([]*Document, error) {
	var docs []*Document
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, err
	}

	for i, doc := range docs {
		if doc == nil {
			return nil, fmt.Errorf("record %d: null document", i)
		}
		if doc.DocID == "" {
			return nil, fmt.Errorf("record %d: missing docId", i)
		}
	}

	return docs, nil
}

// Load reads the corpus file at path and indexes it
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: read %s: %w", path, err)
	}
	defer f.Close()

	docs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("corpus: decode %s: %w", path, err)
	}

	return Build(docs), nil
}
