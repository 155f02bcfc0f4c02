package api

import (
	"mime"
	"net/http"
	"strings"
	"sync"
)

var mimeOnce sync.Once

// registerMimeTypes pins the types browsers are strict about. Minimal
// systems may lack the OS mime tables that Go falls back on.
func registerMimeTypes() {
	mimeOnce.Do(func() {
		mime.AddExtensionType(".html", "text/html; charset=utf-8")
		mime.AddExtensionType(".css", "text/css; charset=utf-8")
		mime.AddExtensionType(".js", "text/javascript; charset=utf-8")
		mime.AddExtensionType(".mjs", "text/javascript; charset=utf-8")
		mime.AddExtensionType(".json", "application/json")
		mime.AddExtensionType(".svg", "image/svg+xml")
		mime.AddExtensionType(".wasm", "application/wasm")
	})
}

// staticHandler serves the root directory: index.html for directories, a
// listing when there is none, 404 for missing files and 403 for unreadable
// ones.
func (a *Api) staticHandler() http.Handler {
	files := http.FileServerFS(a.root.FS())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if containsDotDot(r.URL.Path) {
			a.ctx.Log.Warnf("Rejected path traversal attempt from %s: %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "invalid URL path", http.StatusBadRequest)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func containsDotDot(p string) bool {
	if !strings.Contains(p, "..") {
		return false
	}
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}
