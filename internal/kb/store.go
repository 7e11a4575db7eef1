package kb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"inquest/internal/logging"
)

// Store holds the current Snapshot and optionally watches the backing
// files, swapping in a freshly validated snapshot on change. A load error
// during reload keeps the previous snapshot; the engine never serves a
// half-valid one.
type Store struct {
	kbPath      string
	catalogPath string
	current     atomic.Pointer[Snapshot]
	logger      *logging.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
	cancel        context.CancelFunc
	stopped       chan struct{}
}

// debouncePeriod coalesces editor save sequences into one reload.
const debouncePeriod = 500 * time.Millisecond

// NewStore loads the initial snapshot. The load is fatal on error.
func NewStore(kbPath, catalogPath string) (*Store, error) {
	snap, err := LoadSnapshot(kbPath, catalogPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		kbPath:      kbPath,
		catalogPath: catalogPath,
		logger:      logging.GetLogger("kb.store"),
		stopped:     make(chan struct{}),
	}
	s.current.Store(snap)
	return s, nil
}

// Snapshot returns the current immutable snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Watch starts watching both YAML files for changes. It returns once the
// watcher is installed; reloads happen in the background until ctx is
// cancelled or Stop is called.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	for _, path := range []string{s.kbPath, s.catalogPath} {
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %q: %w", path, err)
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.watchLoop(watchCtx, watcher)

	s.logger.Info("watching KB files for changes (debounce: %s)", debouncePeriod)
	return nil
}

// Stop cancels the watch loop and waits for it to exit.
func (s *Store) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case <-s.stopped:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for KB watcher to stop")
	}
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(s.stopped)
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			relevant := event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
			if !relevant {
				continue
			}
			// Atomic writes replace the inode; re-add the watch.
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				time.Sleep(50 * time.Millisecond)
				if err := watcher.Add(event.Name); err != nil {
					s.logger.Warn("failed to re-add watch after %s: %v", event.Op, err)
				}
			}
			s.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("KB watcher error: %v", err)
		}
	}
}

// scheduleReload debounces bursts of file events into one reload.
func (s *Store) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(debouncePeriod, s.reload)
}

// reload loads and swaps a new snapshot. On error the previous snapshot
// stays in place.
func (s *Store) reload() {
	snap, err := LoadSnapshot(s.kbPath, s.catalogPath)
	if err != nil {
		s.logger.ErrorWithErr("KB reload failed (keeping previous snapshot)", err)
		return
	}
	s.current.Store(snap)
	s.logger.InfoWithFields("KB snapshot reloaded",
		logging.Field("subjects", len(snap.SubjectNames())),
		logging.Field("providers", len(snap.ProviderIDs())),
	)
}
