package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedPut struct {
	method      string
	path        string
	contentType string
	body        string
}

func TestObjectStorePut(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []recordedPut
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, recordedPut{method: r.Method, path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(body)})
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewObjectStore(context.Background(), S3Config{
		Bucket:       "dashboards",
		Prefix:       "/exec/",
		Endpoint:     srv.URL,
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	key, err := store.Put(context.Background(), "dashboard-data.json", "application/json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	require.Equal(t, "exec/dashboard-data.json", key)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, puts, 1)
	require.Equal(t, http.MethodPut, puts[0].method)
	require.Equal(t, "/dashboards/exec/dashboard-data.json", puts[0].path)
	require.Equal(t, "application/json", puts[0].contentType)
	require.True(t, strings.Contains(puts[0].body, `{"ok":true}`))
}

func TestObjectStorePutFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))
	defer srv.Close()

	store, err := NewObjectStore(context.Background(), S3Config{Bucket: "b", Endpoint: srv.URL, AccessKey: "k", SecretKey: "s", UsePathStyle: true})
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "index.html", "text/html", []byte("<html></html>"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage: put index.html")
}

func TestNewObjectStoreValidation(t *testing.T) {
	_, err := NewObjectStore(context.Background(), S3Config{})
	require.Error(t, err)

	store, err := NewObjectStore(context.Background(), S3Config{Bucket: "b"})
	require.NoError(t, err)
	require.Equal(t, "x.csv", store.Key("x.csv"))
}
