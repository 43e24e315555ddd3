// Package chat ties sessions, their ingested documents and the answer resolver together.
package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mwanga/chatbot"
	"mwanga/loader"
	"mwanga/logger"
	"mwanga/metrics"
	"mwanga/store"
	"mwanga/types"
)

// uploadGrace covers the time between saving an upload and writing its session.
const uploadGrace = time.Minute

// TextSource supplies the default document text for sessions without their own.
type TextSource interface {
	Text() loader.Text
}

// Service owns the session to document mapping. Each session's document is ingested once
// and cached; turns within a session are processed one at a time.
type Service struct {
	store     store.SessionStorer
	ingestor  *loader.Ingestor
	resolver  *chatbot.Resolver
	catalog   TextSource
	uploadDir string
	ttl       time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

type entry struct {
	mu     sync.Mutex
	upload string
	path   string
	text   loader.Text
	loaded bool
	closed bool
}

type Config struct {
	Store     store.SessionStorer
	Ingestor  *loader.Ingestor
	Resolver  *chatbot.Resolver
	Catalog   TextSource
	UploadDir string
	// TTL is the session lifetime. Uploads older than it that no session uses are swept.
	TTL    time.Duration
	Logger *zap.Logger
}

func NewService(cfg Config) *Service {
	l := logger.OrNop(cfg.Logger)
	ingestor := cfg.Ingestor
	if ingestor == nil {
		ingestor = loader.NewIngestor(l)
	}
	return &Service{
		store:     cfg.Store,
		ingestor:  ingestor,
		resolver:  cfg.Resolver,
		catalog:   cfg.Catalog,
		uploadDir: cfg.UploadDir,
		ttl:       cfg.TTL,
		logger:    l,
		entries:   make(map[uuid.UUID]*entry),
	}
}

// Open creates a session. docPath may be empty, in which case the session uses the catalog.
// An ingestion failure does not fail Open; it is reported in the returned Text.
func (s *Service) Open(ctx context.Context, params types.SessionParams, docName, docPath string) (*types.Session, loader.Text, error) {
	now := time.Now().UTC()
	sess := &types.Session{
		ID:             uuid.New(),
		Name:           params.Name,
		Company:        params.Company,
		BusinessSector: params.BusinessSector,
		DocumentName:   docName,
		DocumentPath:   docPath,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, loader.Text{}, err
	}

	e := s.entry(sess.ID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.upload = docPath
	text := s.load(ctx, e, sess)

	s.logger.Info("session opened",
		zap.String("session_id", sess.ID.String()),
		zap.String("company", sess.Company),
		zap.String("document", docName),
		zap.Bool("ingested", text.Usable()),
	)
	return sess, text, nil
}

// Info returns the session and its current document text.
func (s *Service) Info(ctx context.Context, id uuid.UUID) (*types.Session, loader.Text, error) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := s.session(ctx, id, e)
	if err != nil {
		return nil, loader.Text{}, err
	}
	return sess, s.load(ctx, e, sess), nil
}

// Exists reports store.ErrSessionNotFound when the session is gone.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) error {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := s.session(ctx, id, e)
	return err
}

// Ask resolves one turn against the session's document.
func (s *Service) Ask(ctx context.Context, id uuid.UUID, message string) (chatbot.Answer, error) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := s.session(ctx, id, e)
	if err != nil {
		return chatbot.Answer{}, err
	}

	text := s.load(ctx, e, sess)
	ans := s.resolver.Resolve(ctx, text, message)
	record(ans)

	s.logger.Info("turn answered",
		zap.String("session_id", id.String()),
		zap.Stringer("provenance", ans.Provenance),
		zap.Bool("rejected", ans.Rejected),
		zap.NamedError("grounded_error", ans.GroundedErr),
		zap.NamedError("answer_error", ans.Err),
	)
	return ans, nil
}

// Attach replaces the session's document. The new text replaces the cached one.
func (s *Service) Attach(ctx context.Context, id uuid.UUID, docName, docPath string) (*types.Session, loader.Text, error) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	old, err := s.session(ctx, id, e)
	if err != nil {
		return nil, loader.Text{}, err
	}
	sess, err := s.store.UpdateDocument(ctx, id, docName, docPath)
	if err != nil {
		return nil, loader.Text{}, err
	}
	if old.DocumentPath != docPath {
		s.removeUpload(old.DocumentPath)
	}

	e.upload = docPath
	e.loaded = false
	text := s.load(ctx, e, sess)
	s.logger.Info("session document replaced",
		zap.String("session_id", id.String()),
		zap.String("document", docName),
		zap.Bool("ingested", text.Usable()),
	)
	return sess, text, nil
}

// Close ends the session and discards its text and uploaded document.
func (s *Service) Close(ctx context.Context, id uuid.UUID) error {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := s.session(ctx, id, e)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.discard(id, e)
	s.removeUpload(sess.DocumentPath)
	s.logger.Info("session closed", zap.String("session_id", id.String()))
	return nil
}

// Sweep discards the cached text and upload of every session the store no longer has,
// then removes uploads older than the session lifetime that no live session uses.
// It returns the number of sessions discarded.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if ex, ok := s.store.(store.Expirer); ok {
		if _, err := ex.DeleteExpired(ctx); err != nil {
			return 0, fmt.Errorf("delete expired sessions: %w", err)
		}
	}

	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var n int
	inUse := make(map[string]bool)
	for _, id := range ids {
		gone, upload, err := s.sweepEntry(ctx, id)
		if err != nil {
			return n, err
		}
		if gone {
			n++
			continue
		}
		if upload != "" {
			inUse[upload] = true
		}
	}

	if err := s.sweepUploads(inUse); err != nil {
		return n, err
	}
	return n, nil
}

func (s *Service) sweepEntry(ctx context.Context, id uuid.UUID) (bool, string, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return false, "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, "", nil
	}
	upload := e.upload
	_, err := s.session(ctx, id, e)
	if errors.Is(err, store.ErrSessionNotFound) {
		s.removeUpload(upload)
		s.logger.Info("expired session discarded", zap.String("session_id", id.String()))
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("check session %s: %w", id, err)
	}
	return false, e.upload, nil
}

// sweepUploads removes files in the upload directory untouched for longer than the session
// lifetime, except those in inUse.
func (s *Service) sweepUploads(inUse map[string]bool) error {
	if s.ttl <= 0 || s.uploadDir == "" {
		return nil
	}
	files, err := os.ReadDir(s.uploadDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read upload dir: %w", err)
	}

	cutoff := time.Now().Add(-s.ttl - uploadGrace)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Join(s.uploadDir, f.Name())
		if inUse[path] {
			continue
		}
		info, err := f.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		s.removeUpload(path)
		s.logger.Debug("stale upload removed", zap.String("path", path))
	}
	return nil
}

// Run sweeps every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("session sweep", zap.Error(err))
			}
			if n > 0 {
				s.logger.Info("session sweep", zap.Int("discarded", n))
			}
		}
	}
}

// Discard removes an upload that never got attached to a session.
func (s *Service) Discard(path string) {
	s.removeUpload(path)
}

// UploadPath returns a fresh path in the upload directory that keeps name's extension.
func (s *Service) UploadPath(name string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	return filepath.Join(s.uploadDir, uuid.NewString()+ext), nil
}

// HasCatalog reports whether a default catalog is configured.
func (s *Service) HasCatalog() bool {
	return s.catalog != nil
}

// session fetches the session from the store. A closed or missing session discards e.
// e must be locked.
func (s *Service) session(ctx context.Context, id uuid.UUID, e *entry) (*types.Session, error) {
	if e.closed {
		return nil, store.ErrSessionNotFound
	}
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrSessionNotFound) {
		s.discard(id, e)
	}
	if err != nil {
		return nil, err
	}
	e.upload = sess.DocumentPath
	return sess, nil
}

func (s *Service) entry(id uuid.UUID) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// discard marks e closed, clears its text and removes it from the entries. e must be locked.
func (s *Service) discard(id uuid.UUID, e *entry) {
	e.closed = true
	e.text, e.loaded = loader.Text{}, false

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[id] == e {
		delete(s.entries, id)
	}
}

// load returns the session's text, ingesting its document at most once per path. e must be locked.
func (s *Service) load(ctx context.Context, e *entry, sess *types.Session) loader.Text {
	if !sess.HasDocument() {
		if s.catalog == nil {
			return loader.Text{}
		}
		return s.catalog.Text()
	}
	if e.loaded && e.path == sess.DocumentPath {
		return e.text
	}

	text, err := s.ingestor.IngestFile(ctx, sess.DocumentPath)
	if err != nil && ctx.Err() != nil {
		// Not cached: a canceled request says nothing about the document.
		return text
	}
	e.path, e.text, e.loaded = sess.DocumentPath, text, true
	return text
}

// removeUpload deletes path if it lives in the upload directory.
func (s *Service) removeUpload(path string) {
	if path == "" || s.uploadDir == "" {
		return
	}
	dir, err := filepath.Abs(s.uploadDir)
	if err != nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil || !strings.HasPrefix(abs, dir+string(filepath.Separator)) {
		return
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove upload", zap.String("path", abs), zap.Error(err))
	}
}

func record(ans chatbot.Answer) {
	metrics.AnswersTotal.WithLabelValues(ans.Provenance.String()).Inc()
	if ans.Rejected {
		metrics.GroundedRejectionsTotal.Inc()
	}
	if ans.GroundedErr != nil {
		metrics.GenerationErrorsTotal.WithLabelValues(string(chatbot.StageGrounded)).Inc()
	}
	var gerr *chatbot.GenerationError
	if errors.As(ans.Err, &gerr) {
		metrics.GenerationErrorsTotal.WithLabelValues(string(gerr.Stage)).Inc()
	}
}
