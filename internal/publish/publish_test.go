package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/execdash/internal/analytics"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memoryStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[name] = append([]byte(nil), data...)
	return "dash/" + name, nil
}

func testArtifacts(dir string) []Artifact {
	return []Artifact{
		{Kind: KindSnapshot, Path: filepath.Join(dir, "dashboard-data.json"), ContentType: "application/json", Data: []byte(`{"LatestDataDate":"2026-03-18"}`)},
		{Kind: KindDocument, Path: filepath.Join(dir, "nested", "index.html"), ContentType: "text/html; charset=utf-8", Data: []byte("<html></html>")},
	}
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "data.json")
	require.NoError(t, WriteFile(path, []byte("first")))
	require.NoError(t, WriteFile(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not linger")

	require.Error(t, WriteFile("", nil))
}

func TestPublisherWritesAndFansOut(t *testing.T) {
	dir := t.TempDir()
	store := &memoryStore{}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := analytics.NewCache(client, time.Hour)

	p := NewPublisher(nil, NewObjectSink(store, nil), NewCacheSink(cache, nil), nil)
	require.Equal(t, 2, p.Sinks())
	require.NoError(t, p.Publish(context.Background(), testArtifacts(dir)))

	html, err := os.ReadFile(filepath.Join(dir, "nested", "index.html"))
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(html))

	require.Len(t, store.objects, 2)
	require.Contains(t, store.objects, "dashboard-data.json")

	var latest map[string]string
	require.NoError(t, cache.Latest(context.Background(), &latest))
	require.Equal(t, "2026-03-18", latest["LatestDataDate"])
}

func TestPublisherWritesNothingWhenAnArtifactFails(t *testing.T) {
	dir := t.TempDir()
	// a regular file where the document's directory should be
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested"), []byte("x"), 0o644))

	store := &memoryStore{}
	p := NewPublisher(nil, NewObjectSink(store, nil))
	err := p.Publish(context.Background(), testArtifacts(dir))
	require.Error(t, err)
	require.Contains(t, err.Error(), "publish: mkdir")

	_, statErr := os.Stat(filepath.Join(dir, "dashboard-data.json"))
	require.True(t, os.IsNotExist(statErr), "snapshot must not be written when a later artefact fails")
	require.Empty(t, store.objects, "sinks must not run after a failed write")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staged temp files must be removed")
}

func TestWriteFilesKeepsPreviousOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "dashboard-data.json")
	require.NoError(t, WriteFile(jsonPath, []byte("previous")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested"), []byte("x"), 0o644))

	require.Error(t, WriteFiles(testArtifacts(dir)))

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.Equal(t, "previous", string(data))
}

func TestPublisherKeepsLocalFilesOnSinkFailure(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("bucket unavailable")
	p := NewPublisher(nil, NewObjectSink(&memoryStore{err: boom}, nil))

	err := p.Publish(context.Background(), testArtifacts(dir))
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "publish: s3")

	_, statErr := os.Stat(filepath.Join(dir, "dashboard-data.json"))
	require.NoError(t, statErr)
}

func TestCacheSinkRequiresSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewCacheSink(analytics.NewCache(client, time.Minute), nil)
	err := sink.Publish(context.Background(), []Artifact{{Kind: KindCSV, Path: "x.csv", Data: []byte("a,b")}})
	require.Error(t, err)

	require.Nil(t, NewCacheSink(nil, nil))
	require.Nil(t, NewObjectSink(nil, nil))
}

func TestSinkErrorNamesSink(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(nil, NewObjectSink(&memoryStore{err: errors.New("denied")}, nil))
	err := p.Publish(context.Background(), testArtifacts(dir))

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	require.Equal(t, "s3", sinkErr.Sink)
}
