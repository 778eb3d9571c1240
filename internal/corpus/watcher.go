package corpus

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nainya/docdeps/internal/logger"
)

// DefaultDebounce is used when the watcher is created with a zero delay
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a Holder when its corpus file is written, created or replaced
type Watcher struct {
	holder   *Holder
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *logger.Logger
	target   string
	done     chan struct{}
}

// NewWatcher watches the directory containing the corpus file.
// Watching the directory keeps working across editors that replace the file.
func NewWatcher(holder *Holder, debounce time.Duration, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	target, err := filepath.Abs(holder.Path())
	if err != nil {
		fsw.Close()
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(target)); err != nil {
		fsw.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Watcher{
		holder:   holder,
		watcher:  fsw,
		debounce: debounce,
		log:      log.CorpusLogger(holder.Path()),
		target:   target,
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("corpus change detected").Str("op", event.Op.String()).Send()
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error").Err(err).Send()

		case <-timer.C:
			changed, err := w.holder.Reload()
			if err != nil {
				w.log.Warn("corpus reload failed, keeping previous snapshot").Err(err).Send()
				continue
			}
			if changed {
				w.log.Info("corpus reloaded").Int("documents", w.holder.Store().Len()).Send()
			}
		}
	}
}

// Close stops watching; a running Run returns once the event channels close
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Done is closed when Run returns
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
