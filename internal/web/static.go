package web

import (
	"embed"
	"net/http"
	"path"
	"sync"

	"github.com/FocuswithJustin/JuniperReader/core/cas"
)

//go:embed static/*
var staticFS embed.FS

type staticFile struct {
	content     []byte
	etag        string
	contentType string
}

// staticFiles is read once from the embedded tree.
var staticFiles = sync.OnceValue(func() map[string]staticFile {
	files := make(map[string]staticFile)
	entries, err := staticFS.ReadDir("static")
	if err != nil {
		return files
	}
	for _, e := range entries {
		content, err := staticFS.ReadFile("static/" + e.Name())
		if err != nil {
			continue
		}
		files[e.Name()] = staticFile{
			content:     content,
			etag:        `"` + cas.Hash(content)[:16] + `"`,
			contentType: contentTypeFor(e.Name()),
		}
	}
	return files
})

func contentTypeFor(name string) string {
	switch path.Ext(name) {
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

func handleStatic(w http.ResponseWriter, r *http.Request) {
	f, ok := staticFiles()[r.PathValue("name")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("ETag", f.etag)
	if r.Header.Get("If-None-Match") == f.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(f.content)
}
