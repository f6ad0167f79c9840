package dlcache

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDB struct {
	rows map[[2]string][2]string
}

func newMemDB() *memDB { return &memDB{rows: map[[2]string][2]string{}} }

func (m *memDB) Get(ctx context.Context, device, key string) (string, string, bool, error) {
	row, ok := m.rows[[2]string{device, key}]
	return row[0], row[1], ok, nil
}

func (m *memDB) Set(ctx context.Context, device, key, version, latest string) error {
	m.rows[[2]string{device, key}] = [2]string{version, latest}
	return nil
}

func (m *memDB) Del(ctx context.Context, device, key string) error {
	delete(m.rows, [2]string{device, key})
	return nil
}

func (m *memDB) Close() error { return nil }

// fakeDoer serves a canned sequence of responses, recording every request.
type fakeDoer struct {
	responses []*http.Response
	requests  []*http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func newResponse(status int, body string, headers map[string]string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{},
	}
	for k, v := range headers {
		resp.Header.Set(k, v)
	}
	return resp
}

func TestDlFetchesAndStoresOnFirstCall(t *testing.T) {
	dir := t.TempDir()
	doer := &fakeDoer{responses: []*http.Response{
		newResponse(200, "hello", map[string]string{"ETag": "abc"}),
	}}
	c := &Cache{Dir: dir, DB: newMemDB(), Client: doer, Now: func() time.Time { return time.Unix(1000, 0) }}

	path, err := c.Dl(context.Background(), "https://example.com/f", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, encodeName("https://example.com/f")), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, etag, found, err := c.DB.Get(context.Background(), encodeName("https://example.com/f"), "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc", etag)
}

func TestDlSends304AndKeepsCachedFile(t *testing.T) {
	dir := t.TempDir()
	name := encodeName("https://example.com/f")
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0o644))

	db := newMemDB()
	require.NoError(t, db.Set(context.Background(), name, "", "500", "etag-1"))

	doer := &fakeDoer{responses: []*http.Response{newResponse(304, "", nil)}}
	c := &Cache{Dir: dir, DB: db, Client: doer, Now: func() time.Time { return time.Unix(1000, 0) }}

	got, err := c.Dl(context.Background(), "https://example.com/f", nil)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	require.Len(t, doer.requests, 1)
	assert.Equal(t, "etag-1", doer.requests[0].Header.Get("If-None-Match"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old content", string(content))
}

func TestDlWithinTTLSkipsNetworkEntirely(t *testing.T) {
	dir := t.TempDir()
	name := encodeName("https://example.com/f")
	db := newMemDB()
	require.NoError(t, db.Set(context.Background(), name, "", "990", "etag-1"))

	doer := &fakeDoer{} // any Do call panics on empty slice
	c := &Cache{Dir: dir, DB: db, Client: doer, Now: func() time.Time { return time.Unix(1000, 0) }}

	ttl := 30 * time.Second
	path, err := c.Dl(context.Background(), "https://example.com/f", &ttl)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, name), path)
	assert.Empty(t, doer.requests)
}

func TestDlErrorStatusFails(t *testing.T) {
	dir := t.TempDir()
	doer := &fakeDoer{responses: []*http.Response{newResponse(500, "boom", nil)}}
	c := &Cache{Dir: dir, DB: newMemDB(), Client: doer, Now: time.Now}

	_, err := c.Dl(context.Background(), "https://example.com/f", nil)
	assert.Error(t, err)
}
