package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scalux/scalux/internal/logging"
	"github.com/scalux/scalux/pkg/adapters/cue"
	"github.com/scalux/scalux/pkg/adapters/yaml"
	"github.com/scalux/scalux/pkg/domain"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Loader implements ports.TreeLoader and ports.Watchable for a definition
// file. The format follows the extension: .yaml, .yml and .json are read
// as YAML, .cue as CUE.
type Loader struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) LoaderOption {
	return func(l *Loader) { l.debounce = d }
}

// WithLogger sets the logger used for watcher diagnostics.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader for the definition at path.
func NewLoader(path string, opts ...LoaderOption) (*Loader, error) {
	if _, err := decoderFor(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	l := &Loader{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the absolute path of the definition file.
func (l *Loader) Path() string { return l.path }

// Load reads and decodes the definition file.
func (l *Loader) Load(ctx context.Context) (domain.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	decode, _ := decoderFor(l.path)
	def, err := decode(l.path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(l.path), err)
	}
	return def, nil
}

// Watch signals on the returned channel after the file changes. The parent
// directory is watched rather than the file so that editors which replace
// the file by rename are still seen. The channel is closed when ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(l.path), err)
	}

	out := make(chan struct{}, 1)
	go l.run(ctx, w, out)
	return out, nil
}

func (l *Loader) run(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	defer w.Close()

	timer := time.NewTimer(l.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			l.logger.Debug("definition changed", "path", l.path, "op", event.Op.String())
			timer.Reset(l.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Warn("definition watcher error", "path", l.path, "err", err)

		case <-timer.C:
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

type decodeFunc func(name string, data []byte) (domain.Tree, error)

func decoderFor(path string) (decodeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return func(_ string, data []byte) (domain.Tree, error) { return yaml.Decode(data) }, nil
	case ".cue":
		return cue.Decode, nil
	}
	return nil, fmt.Errorf("unsupported definition format %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path))
}
