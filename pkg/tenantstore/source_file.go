package tenantstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileSource reads the configuration document from a local file.
type FileSource struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewFileSource returns a source for path. Changes are coalesced for
// debounce before the callback runs; zero means 200ms.
func NewFileSource(path string, debounce time.Duration, logger *slog.Logger) *FileSource {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileSource{path: path, debounce: debounce, logger: logger}
}

func (f *FileSource) Load(context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return b, nil
}

// Watch observes the file's directory so atomic replace-by-rename is seen.
func (f *FileSource) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Join(ErrWatchNotSupported, err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return errors.Join(ErrWatchNotSupported, err)
	}

	target := filepath.Clean(f.path)
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				if timer == nil {
					timer = time.NewTimer(f.debounce)
				} else {
					timer.Reset(f.debounce)
				}
				pending = timer.C
			}
		case <-pending:
			pending = nil
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.ErrorContext(ctx, "tenant config watch error", slog.String("path", f.path), slog.Any("error", err))
		}
	}
}
