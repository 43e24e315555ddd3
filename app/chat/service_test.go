package chat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mwanga/chatbot"
	"mwanga/loader"
	"mwanga/store"
	"mwanga/types"
)

// echoGenerator answers grounded prompts with the embedded document text.
type echoGenerator struct {
	mu      sync.Mutex
	prompts []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (g *echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxInFlight.Load()
		if n <= m || g.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(g.delay)

	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if i := strings.Index(prompt, "characters):\n"); i >= 0 {
		doc := prompt[i+len("characters):\n"):]
		return "From the document: " + strings.SplitN(doc, "\n\n", 2)[0], nil
	}
	return "General knowledge answer for you.", nil
}

func (g *echoGenerator) last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

type staticCatalog struct{ text loader.Text }

func (c staticCatalog) Text() loader.Text { return c.text }

var params = types.SessionParams{Name: "Amina", Company: "Jua Power", BusinessSector: "Energy"}

func newService(t *testing.T, gen chatbot.Generator, catalog TextSource) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	return NewService(Config{
		Store:     store.NewMemoryStore(0),
		Resolver:  chatbot.NewResolver(gen, chatbot.Config{}),
		Catalog:   catalog,
		UploadDir: dir,
	}), dir
}

func upload(t *testing.T, svc *Service, name, content string) string {
	t.Helper()
	path, err := svc.UploadPath(name)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestService_OpenAndAskGrounded(t *testing.T) {
	gen := &echoGenerator{}
	svc, _ := newService(t, gen, nil)
	ctx := context.Background()

	path := upload(t, svc, "catalog.txt", "Battery Model X: 20000mAh, USB-C, $49.99")
	sess, text, err := svc.Open(ctx, params, "catalog.txt", path)
	require.NoError(t, err)
	assert.True(t, text.Usable())
	assert.Equal(t, "Amina", sess.Name)

	ans, err := svc.Ask(ctx, sess.ID, "What is the capacity of Model X?")
	require.NoError(t, err)
	assert.Equal(t, chatbot.ProvenanceGrounded, ans.Provenance)
	assert.Equal(t, "From the document: Battery Model X: 20000mAh, USB-C, $49.99", ans.Body)
}

func TestService_IngestsOncePerSession(t *testing.T) {
	gen := &echoGenerator{}
	svc, _ := newService(t, gen, nil)
	ctx := context.Background()

	path := upload(t, svc, "catalog.txt", "Original catalog text for the session.")
	sess, _, err := svc.Open(ctx, params, "catalog.txt", path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("Rewritten on disk afterwards."), 0o600))

	_, err = svc.Ask(ctx, sess.ID, "what?")
	require.NoError(t, err)
	assert.Contains(t, gen.last(), "Original catalog text for the session.")
}

func TestService_FailedIngestionFallsBack(t *testing.T) {
	gen := &echoGenerator{}
	svc, dir := newService(t, gen, nil)
	ctx := context.Background()

	sess, text, err := svc.Open(ctx, params, "gone.pdf", filepath.Join(dir, "gone.pdf"))
	require.NoError(t, err)
	assert.True(t, text.Failed())
	assert.ErrorIs(t, text.Err, loader.ErrNotFound)

	ans, err := svc.Ask(ctx, sess.ID, "price?")
	require.NoError(t, err)
	assert.Equal(t, chatbot.ProvenanceFallback, ans.Provenance)
	assert.NotContains(t, gen.last(), "Document Content")
}

func TestService_CatalogAndNoDocument(t *testing.T) {
	ctx := context.Background()

	gen := &echoGenerator{}
	svc, _ := newService(t, gen, staticCatalog{text: loader.Text{Source: "catalog", Pages: []string{"Solar Kit Pro: 100W panel."}}})
	assert.True(t, svc.HasCatalog())
	sess, _, err := svc.Open(ctx, params, "", "")
	require.NoError(t, err)
	ans, err := svc.Ask(ctx, sess.ID, "panel wattage?")
	require.NoError(t, err)
	assert.Equal(t, chatbot.ProvenanceGrounded, ans.Provenance)

	gen = &echoGenerator{}
	svc, _ = newService(t, gen, nil)
	sess, _, err = svc.Open(ctx, params, "", "")
	require.NoError(t, err)
	ans, err = svc.Ask(ctx, sess.ID, "panel wattage?")
	require.NoError(t, err)
	assert.Equal(t, chatbot.ProvenanceFallback, ans.Provenance)
}

func TestService_AttachReplacesDocument(t *testing.T) {
	gen := &echoGenerator{}
	svc, _ := newService(t, gen, nil)
	ctx := context.Background()

	first := upload(t, svc, "a.txt", "First catalog: Model X.")
	sess, _, err := svc.Open(ctx, params, "a.txt", first)
	require.NoError(t, err)

	second := upload(t, svc, "b.txt", "Second catalog: Model Y.")
	updated, text, err := svc.Attach(ctx, sess.ID, "b.txt", second)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", updated.DocumentName)
	assert.Equal(t, "Second catalog: Model Y.", text.String())

	_, err = os.Stat(first)
	assert.ErrorIs(t, err, os.ErrNotExist)

	ans, err := svc.Ask(ctx, sess.ID, "which model?")
	require.NoError(t, err)
	assert.Contains(t, ans.Body, "Model Y")
}

func TestService_Close(t *testing.T) {
	svc, _ := newService(t, &echoGenerator{}, nil)
	ctx := context.Background()

	path := upload(t, svc, "a.txt", "Catalog.")
	sess, _, err := svc.Open(ctx, params, "a.txt", path)
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx, sess.ID))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = svc.Ask(ctx, sess.ID, "hello?")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Close(ctx, sess.ID), store.ErrSessionNotFound)
}

func TestService_UnknownSession(t *testing.T) {
	svc, _ := newService(t, &echoGenerator{}, nil)
	ctx := context.Background()

	_, err := svc.Ask(ctx, uuid.New(), "hi")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	_, _, err = svc.Info(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	_, _, err = svc.Attach(ctx, uuid.New(), "a.txt", "x")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestService_SerializesTurnsPerSession(t *testing.T) {
	gen := &echoGenerator{delay: 5 * time.Millisecond}
	svc, _ := newService(t, gen, nil)
	ctx := context.Background()

	sess, _, err := svc.Open(ctx, params, "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ask(ctx, sess.ID, "question?")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), gen.maxInFlight.Load())
}

func TestService_UploadPathIsUnique(t *testing.T) {
	svc, dir := newService(t, &echoGenerator{}, nil)

	a, err := svc.UploadPath("../../etc/Catalog.PDF")
	require.NoError(t, err)
	b, err := svc.UploadPath("Catalog.PDF")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, dir, filepath.Dir(a))
	assert.Equal(t, ".pdf", filepath.Ext(a))
}

func TestService_CloseWaitsForTurnInFlight(t *testing.T) {
	gen := &echoGenerator{delay: 20 * time.Millisecond}
	svc, _ := newService(t, gen, nil)
	ctx := context.Background()

	path := upload(t, svc, "a.txt", "Catalog: Model X.")
	sess, _, err := svc.Open(ctx, params, "a.txt", path)
	require.NoError(t, err)

	svc.mu.Lock()
	e := svc.entries[sess.ID]
	svc.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.Ask(ctx, sess.ID, "which model?")
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return gen.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, svc.Close(ctx, sess.ID))
	wg.Wait()

	_, err = svc.Ask(ctx, sess.ID, "still there?")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.True(t, e.closed)
	assert.False(t, e.loaded)
	assert.Empty(t, e.text.Pages)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.entries)
}

func TestService_SweepDiscardsVanishedSession(t *testing.T) {
	st := store.NewMemoryStore(0)
	dir := t.TempDir()
	svc := NewService(Config{
		Store:     st,
		Resolver:  chatbot.NewResolver(&echoGenerator{}, chatbot.Config{}),
		UploadDir: dir,
		TTL:       time.Hour,
	})
	ctx := context.Background()

	gone := upload(t, svc, "a.txt", "Catalog: Model X.")
	expired, _, err := svc.Open(ctx, params, "a.txt", gone)
	require.NoError(t, err)
	kept := upload(t, svc, "b.txt", "Catalog: Model Y.")
	live, _, err := svc.Open(ctx, params, "b.txt", kept)
	require.NoError(t, err)

	// The store drops the session on its own, as a Redis key expiry does.
	require.NoError(t, st.DeleteSession(ctx, expired.ID))

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(gone)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(kept)
	assert.NoError(t, err)

	svc.mu.Lock()
	assert.Len(t, svc.entries, 1)
	assert.Contains(t, svc.entries, live.ID)
	svc.mu.Unlock()
}

func TestService_SweepExpiresSessions(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Config{
		Store:     store.NewMemoryStore(time.Millisecond),
		Resolver:  chatbot.NewResolver(&echoGenerator{}, chatbot.Config{}),
		UploadDir: dir,
		TTL:       time.Millisecond,
	})
	ctx := context.Background()

	path := upload(t, svc, "a.txt", "Catalog: Model X.")
	sess, _, err := svc.Open(ctx, params, "a.txt", path)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	svc.mu.Lock()
	assert.Empty(t, svc.entries)
	svc.mu.Unlock()

	_, err = svc.Ask(ctx, sess.ID, "hello?")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestService_SweepRemovesStaleUploads(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Config{
		Store:     store.NewMemoryStore(0),
		Resolver:  chatbot.NewResolver(&echoGenerator{}, chatbot.Config{}),
		UploadDir: dir,
		TTL:       time.Hour,
	})
	ctx := context.Background()
	old := time.Now().Add(-3 * time.Hour)

	orphan := upload(t, svc, "orphan.pdf", "left by a session from before a restart")
	require.NoError(t, os.Chtimes(orphan, old, old))
	recent := upload(t, svc, "recent.pdf", "saved moments ago")

	used := upload(t, svc, "a.txt", "Catalog: Model X.")
	_, _, err := svc.Open(ctx, params, "a.txt", used)
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(used, old, old))

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = os.Stat(orphan)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(recent)
	assert.NoError(t, err)
	_, err = os.Stat(used)
	assert.NoError(t, err)
}

func TestService_RunStopsWithContext(t *testing.T) {
	svc, _ := newService(t, &echoGenerator{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
