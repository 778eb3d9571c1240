// Package corpus keeps the current document store snapshot and reloads it
// when the corpus file changes.
package corpus

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nainya/docdeps/internal/logger"
	"github.com/nainya/docdeps/internal/metrics"
	"github.com/nainya/docdeps/pkg/document"
)

// Holder owns the current *document.Store. Readers get an immutable snapshot;
// reloads build a new store and swap it in.
type Holder struct {
	path    string
	log     *logger.Logger
	metrics *metrics.Metrics

	store atomic.Pointer[document.Store]

	reloadMu sync.Mutex
	hash     [sha256.Size]byte
}

// NewHolder creates a holder for the corpus at path. m may be nil.
func NewHolder(path string, log *logger.Logger, m *metrics.Metrics) *Holder {
	if log == nil {
		log = logger.Nop()
	}
	return &Holder{
		path:    path,
		log:     log.CorpusLogger(path),
		metrics: m,
	}
}

// Path returns the corpus file path
func (h *Holder) Path() string {
	return h.path
}

// Store returns the current snapshot, nil before the first successful load
func (h *Holder) Store() *document.Store {
	return h.store.Load()
}

// Load performs the initial load
func (h *Holder) Load() error {
	_, err := h.Reload()
	return err
}

// Reload rebuilds the store when the file content changed.
// On failure the previous snapshot stays in place.
func (h *Holder) Reload() (bool, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	start := time.Now()
	data, err := os.ReadFile(h.path)
	if err != nil {
		err = fmt.Errorf("corpus: read %s: %w", h.path, err)
		h.record(start, 0, err)
		return false, err
	}

	sum := sha256.Sum256(data)
	if h.store.Load() != nil && sum == h.hash {
		h.log.Debug("corpus unchanged").Send()
		return false, nil
	}

	docs, err := document.Decode(bytes.NewReader(data))
	if err != nil {
		err = fmt.Errorf("corpus: decode %s: %w", h.path, err)
		h.record(start, 0, err)
		return false, err
	}

	store := document.Build(docs)
	if n := store.Overwrites(); n > 0 {
		h.log.Warn("duplicate docId in corpus").Int("overwritten", n).Send()
	}

	h.store.Store(store)
	h.hash = sum
	h.record(start, store.Len(), nil)
	return true, nil
}

func (h *Holder) record(start time.Time, docCount int, err error) {
	h.log.LogCorpusLoad(h.path, time.Since(start), docCount, err)
	if h.metrics != nil {
		h.metrics.RecordCorpusLoad(docCount, err)
	}
}
