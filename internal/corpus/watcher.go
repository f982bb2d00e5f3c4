package corpus

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/deckscan/pkg/errors"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the corpus whenever one of the loader's local files changes
// and hands the new corpus to onReload. Remote locations are not watched.
type Watcher struct {
	loader   *Loader
	onReload func(*Corpus) error
	files    map[string]struct{}
	debounce time.Duration
	metrics  *prometheus.ScanMetrics
	logger   logging.Logger
}

type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

func WithWatcherMetrics(m *prometheus.ScanMetrics) WatcherOption {
	return func(w *Watcher) { w.metrics = m }
}

func NewWatcher(loader *Loader, onReload func(*Corpus) error, logger logging.Logger, opts ...WatcherOption) (*Watcher, error) {
	paths := loader.LocalPaths()
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrCodeCorpusUnsupported, "no local corpus files to watch")
	}
	w := &Watcher{
		loader:   loader,
		onReload: onReload,
		files:    make(map[string]struct{}, len(paths)),
		debounce: defaultDebounce,
		logger:   logging.OrNop(logger).Named("corpus.watcher"),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCorpusUnsupported, "invalid corpus path").WithDetail(p)
		}
		w.files[abs] = struct{}{}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run blocks until ctx is done. Directories are watched rather than files so
// that editors replacing a file by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create file watcher")
	}
	defer fw.Close()

	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to watch corpus directory").WithDetail(d)
		}
	}
	w.logger.Info("watching corpus files", logging.Int("files", len(w.files)))

	var (
		pending bool
		last    time.Time
	)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[abs]; !watched {
				continue
			}
			w.logger.Debug("corpus file changed", logging.String("file", abs), logging.String("op", ev.Op.String()))
			pending, last = true, time.Now()
		case <-ticker.C:
			if pending && time.Since(last) >= w.debounce {
				pending = false
				w.reload(ctx)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	c, err := w.loader.Load(ctx)
	if err == nil {
		err = w.onReload(c)
	}
	prometheus.RecordCorpusReload(w.metrics, err == nil)
	if err != nil {
		// The previous recognizer stays active.
		w.logger.Error("corpus reload failed", logging.Err(err))
		return
	}
	w.logger.Info("corpus reloaded", logging.Int("entities", len(c.Entities)+len(c.Extra)))
}
