package termbridge

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/termbridge/feed"
)

// Watcher refreshes an engine whenever feed files in a directory change.
// Bursts of events are coalesced into one refresh after the debounce
// interval passes without further changes.
type Watcher struct {
	engine   *Engine
	dir      string
	extra    []feed.Provider
	debounce time.Duration
	fw       *fsnotify.Watcher
	trigger  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closeErr error // set before done is closed
	logger   *slog.Logger
}

// Watch starts watching dir. Every refresh reads all feed files in dir and
// the extra providers. The watcher stops when ctx is done or Stop is called.
func (e *Engine) Watch(ctx context.Context, dir string, extra ...feed.Provider) (*Watcher, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(abs); err != nil {
		fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		engine:   e,
		dir:      abs,
		extra:    extra,
		debounce: e.debounce,
		fw:       fw,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
		logger:   e.logger.With("watch", abs),
	}
	w.wg.Add(2)
	go w.events(ctx)
	go w.refresher(ctx)
	go func() {
		w.wg.Wait()
		w.closeErr = w.fw.Close()
		close(w.done)
	}()
	w.logger.Info("watching feed directory", "debounce", w.debounce)
	return w, nil
}

func (w *Watcher) events(ctx context.Context) {
	defer w.wg.Done()
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !feed.IsFeedFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("feed file changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.AfterFunc(w.debounce, w.fire)
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) fire() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) refresher(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.trigger:
			w.refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	providers, err := feed.OpenDir(w.dir)
	if err != nil {
		w.logger.Error("failed to read feed directory", "err", err)
		return
	}
	providers = append(providers, w.extra...)
	if len(providers) == 0 {
		w.logger.Info("no feeds to refresh")
		return
	}
	report, err := w.engine.Refresh(ctx, providers...)
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		w.logger.Error("refresh failed, previous generation kept", "err", err)
	default:
		w.logger.Info("refreshed from feed directory", "build_id", report.BuildID, "embedded", report.Embedded)
	}
}

// Done is closed once the watcher has stopped and released its file
// watches, whether through Stop or the end of the context.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Stop ends watching and waits for a running refresh to finish.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(w.cancel)
	<-w.done
	return w.closeErr
}
