// Package site serves the static marketing site with the caching policy the
// service worker applies in the browser: long-lived caching for static
// assets, revalidation for everything else, and an offline placeholder for
// images that cannot be found.
package site

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/plumbus-labs/plumbus/pkg/fallback"
)

const (
	// CacheStatic is sent for static assets.
	CacheStatic = "public, max-age=31536000, immutable"
	// CacheRevalidate is sent for documents and API-like responses.
	CacheRevalidate = "no-cache"
)

// StaticExtensions are the file extensions treated as static assets.
var StaticExtensions = []string{
	".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".woff", ".woff2",
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}

//go:embed public
var embedded embed.FS

// Default returns the bundled site.
func Default() fs.FS {
	sub, _ := fs.Sub(embedded, "public")
	return sub
}

// Handler serves files from a file system.
type Handler struct {
	fsys   fs.FS
	files  http.Handler
	logger *zap.Logger
}

// New creates a Handler serving fsys.
func New(fsys fs.FS, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		fsys:   fsys,
		files:  http.FileServer(http.FS(fsys)),
		logger: logger,
	}
}

// IsStatic reports whether a request path names a static asset.
func IsStatic(p string) bool {
	return slices.Contains(StaticExtensions, strings.ToLower(path.Ext(p)))
}

func isImage(p string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(path.Ext(p)))
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}

	if _, err := fs.Stat(h.fsys, name); err != nil && isImage(name) {
		h.logger.Debug("image missing, serving placeholder", zap.String("path", r.URL.Path))
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(fallback.Placeholder())
		}
		return
	}

	if IsStatic(name) {
		w.Header().Set("Cache-Control", CacheStatic)
	} else {
		w.Header().Set("Cache-Control", CacheRevalidate)
	}
	h.files.ServeHTTP(w, r)
}
