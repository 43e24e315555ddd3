package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"mwanga/logger"
)

// DefaultSettle is how long the catalog file must stay unchanged before it is re-ingested.
const DefaultSettle = time.Second

// Catalog keeps the ingested text of a default catalog document current.
type Catalog struct {
	path     string
	ingestor *Ingestor
	settle   time.Duration
	logger   *zap.Logger

	mu   sync.RWMutex
	text Text
}

// NewCatalog ingests path immediately. A failed ingestion is kept as the current Text.
func NewCatalog(ctx context.Context, path string, ingestor *Ingestor, settle time.Duration, l *zap.Logger) *Catalog {
	if settle <= 0 {
		settle = DefaultSettle
	}
	c := &Catalog{
		path:     filepath.Clean(path),
		ingestor: ingestor,
		settle:   settle,
		logger:   logger.OrNop(l),
	}
	c.reload(ctx)
	return c
}

func (c *Catalog) Path() string {
	return c.path
}

// Text returns the latest ingested catalog text.
func (c *Catalog) Text() Text {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.text
}

func (c *Catalog) reload(ctx context.Context) {
	text, _ := c.ingestor.IngestFile(ctx, c.path)
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

// Watch starts re-ingesting the catalog whenever its file changes, until ctx is done.
// The watch is registered before Watch returns.
func (c *Catalog) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors and uploads replace files via rename.
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(c.path), err)
	}

	c.logger.Info("watching catalog", zap.String("path", c.path), zap.Duration("settle", c.settle))
	go c.loop(ctx, w)
	return nil
}

func (c *Catalog) loop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("catalog watcher stopped", zap.String("path", c.path))
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != c.path || ev.Op&relevant == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(c.settle)
			} else {
				timer.Reset(c.settle)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			c.reload(ctx)
			text := c.Text()
			c.logger.Info("catalog reloaded",
				zap.String("path", c.path),
				zap.Bool("usable", text.Usable()),
				zap.Int("pages", len(text.Pages)),
			)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}
