package ingest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // queue PDFs already present before watching
	SkipHidden  bool          // ignore dot-files and dot-directories
	Debounce    time.Duration // coalesce rapid write bursts per file
}

// StartWatcher emits the paths of PDFs created or rewritten under the roots.
// Both channels close when ctx ends.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *zap.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.IsDir() {
				return nil
			}
			if cfg.SkipHidden && path != root && isHidden(path) {
				return filepath.SkipDir
			}
			return w.Add(path)
		})
		if err != nil {
			logger.Error("ingest.watch.add_failed", zap.String("root", root), zap.Error(err))
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", zap.Error(err))
			}
		}()

		var (
			mu      sync.Mutex
			pending = map[string]*time.Timer{}
			sends   sync.WaitGroup
		)
		defer func() {
			mu.Lock()
			for _, t := range pending {
				if t.Stop() {
					sends.Done()
				}
			}
			mu.Unlock()
			sends.Wait()
			close(evCh)
		}()

		emit := func(path string) {
			select {
			case evCh <- path:
			case <-ctx.Done():
			}
		}
		schedule := func(path string) {
			mu.Lock()
			defer mu.Unlock()
			if t, ok := pending[path]; ok && t.Stop() {
				sends.Done()
			}
			sends.Add(1)
			pending[path] = time.AfterFunc(cfg.Debounce, func() {
				defer sends.Done()
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				emit(path)
			})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && isHidden(e.Name) {
					continue
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					// new subdirectories are watched too; Add fails harmlessly for files
					_ = w.Add(e.Name)
				}
				if allowed(e.Name) && e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					schedule(e.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("ingest.watch.error", zap.Error(err))
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// Watch queues every PDF the watcher reports until ctx ends. With InitialScan
// the roots are walked first, after the watch is registered, so nothing
// dropped during the scan is missed; duplicates are filtered by content hash.
func (in *Ingestor) Watch(ctx context.Context, cfg WatchConfig) error {
	paths, errs, err := StartWatcher(ctx, cfg, in.logger)
	if err != nil {
		return err
	}
	if cfg.InitialScan {
		for _, root := range cfg.Roots {
			if _, _, err := in.IngestDirectory(ctx, root, cfg.SkipHidden); err != nil {
				in.logger.Warn("ingest.scan.failed", zap.String("root", root), zap.Error(err))
			}
		}
	}
	in.logger.Info("ingest.watch.started", zap.Strings("roots", cfg.Roots))
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return ctx.Err()
			}
			if _, err := in.IngestPath(ctx, p); err != nil {
				in.logger.Warn("ingest.file.failed", zap.String("path", p), zap.Error(err))
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		}
	}
}
