package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/docdeps/internal/metrics"
)

const twoDocs = `[
  {"docId": "A", "docLabel": "A", "docTitle": "Alpha", "status": {}, "references": {"normative": ["B"]}},
  {"docId": "B", "docLabel": "B", "docTitle": "Bravo", "status": {}}
]`

const threeDocs = `[
  {"docId": "A", "docLabel": "A", "docTitle": "Alpha", "status": {}, "references": {"normative": ["B", "C"]}},
  {"docId": "B", "docLabel": "B", "docTitle": "Bravo", "status": {}},
  {"docId": "C", "docLabel": "C", "docTitle": "Charlie", "status": {"withdrawn": true}}
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestHolderLoadAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	writeFile(t, path, twoDocs)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := NewHolder(path, nil, m)
	assert.Nil(t, h.Store())

	require.NoError(t, h.Load())
	first := h.Store()
	require.NotNil(t, first)
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CorpusDocuments))

	changed, err := h.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "unchanged content must not rebuild")
	assert.Same(t, first, h.Store())

	writeFile(t, path, threeDocs)
	changed, err = h.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 3, h.Store().Len())
	assert.Equal(t, 2, first.Len(), "old snapshot is untouched")
}

func TestHolderReloadFailureKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	writeFile(t, path, twoDocs)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := NewHolder(path, nil, m)
	require.NoError(t, h.Load())
	before := h.Store()

	writeFile(t, path, `[{"docId": `)
	_, err := h.Reload()
	require.Error(t, err)
	assert.Same(t, before, h.Store())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorpusReloadsTotal.WithLabelValues("error")))

	require.NoError(t, os.Remove(path))
	_, err = h.Reload()
	assert.Error(t, err)
	assert.Same(t, before, h.Store())
}

func TestHolderLoadMissingFile(t *testing.T) {
	h := NewHolder(filepath.Join(t.TempDir(), "absent.json"), nil, nil)
	assert.Error(t, h.Load())
	assert.Nil(t, h.Store())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.json")
	writeFile(t, path, twoDocs)

	h := NewHolder(path, nil, nil)
	require.NoError(t, h.Load())

	w, err := NewWatcher(h, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		w.Close()
		<-w.Done()
	})

	// unrelated files in the same directory are ignored
	writeFile(t, filepath.Join(dir, "other.json"), "not json")
	writeFile(t, path, threeDocs)

	require.Eventually(t, func() bool {
		return h.Store().Len() == 3
	}, 5*time.Second, 10*time.Millisecond)
}
