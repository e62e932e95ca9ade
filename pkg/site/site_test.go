package site

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumbus-labs/plumbus/pkg/fallback"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":      {Data: []byte("<h1>plumbus</h1>")},
		"app.js":          {Data: []byte("console.log(1)")},
		"img/logo.png":    {Data: []byte("\x89PNG")},
		"fonts/a.woff2":   {Data: []byte("font")},
		"docs/notes.json": {Data: []byte("{}")},
	}
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestStaticAssetsLongLived(t *testing.T) {
	h := New(testFS(), nil)

	for _, p := range []string{"/app.js", "/img/logo.png", "/fonts/a.woff2"} {
		w := serve(h, http.MethodGet, p)
		assert.Equal(t, http.StatusOK, w.Code, p)
		assert.Equal(t, CacheStatic, w.Header().Get("Cache-Control"), p)
	}
}

func TestDocumentsRevalidate(t *testing.T) {
	h := New(testFS(), nil)

	w := serve(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, CacheRevalidate, w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Body.String(), "plumbus")

	w = serve(h, http.MethodGet, "/docs/notes.json")
	assert.Equal(t, CacheRevalidate, w.Header().Get("Cache-Control"))
}

func TestMissingImagePlaceholder(t *testing.T) {
	h := New(testFS(), nil)

	w := serve(h, http.MethodGet, "/img/missing.webp")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, fallback.Placeholder(), w.Body.Bytes())
}

func TestMissingScriptNotFound(t *testing.T) {
	h := New(testFS(), nil)
	w := serve(h, http.MethodGet, "/missing.js")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(testFS(), nil)
	w := serve(h, http.MethodPost, "/app.js")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestIsStatic(t *testing.T) {
	assert.True(t, IsStatic("/a/b.CSS"))
	assert.True(t, IsStatic("x.ico"))
	assert.False(t, IsStatic("/index.html"))
	assert.False(t, IsStatic("/v1/usage"))
}

func TestDefaultSite(t *testing.T) {
	h := New(Default(), nil)
	w := serve(h, http.MethodGet, "/sw.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, CacheStatic, w.Header().Get("Cache-Control"))

	w = serve(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceWorkerScript(t *testing.T) {
	data, err := fs.ReadFile(Default(), "sw.js")
	require.NoError(t, err)
	script := string(data)

	assert.Contains(t, script, "url.origin !== self.location.origin")
	assert.Contains(t, script, "'GET'")
	assert.Contains(t, script, "catch (err)")
	assert.Contains(t, script, "'Content-Type': 'image/svg+xml'")
	_, rest, ok := strings.Cut(script, "const STATIC = /\\.(")
	require.True(t, ok)
	alts, _, ok := strings.Cut(rest, ")")
	require.True(t, ok)
	var exts []string
	for _, e := range strings.Split(alts, "|") {
		exts = append(exts, "."+e)
	}
	assert.ElementsMatch(t, StaticExtensions, exts)
}
