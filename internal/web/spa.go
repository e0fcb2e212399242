package web

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

type spaHandler struct {
	assets fs.FS
	files  http.Handler
	index  []byte
	logger logSDK.Logger
}

// newFrontendSPAHandler serves the client from assets, falling back to
// index.html for paths that do not look like files.
func newFrontendSPAHandler(logger logSDK.Logger, assets fs.FS) (*spaHandler, error) {
	if logger == nil || assets == nil {
		return nil, errors.New("logger and assets are required")
	}

	index, err := fs.ReadFile(assets, "index.html")
	if err != nil {
		return nil, errors.Wrap(err, "read frontend index")
	}

	return &spaHandler{
		assets: assets,
		files:  http.FileServer(http.FS(assets)),
		index:  index,
		logger: logger,
	}, nil
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	clean := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if clean == "" || clean == "index.html" {
		h.serveIndex(w, r)
		return
	}

	if info, err := fs.Stat(h.assets, clean); err == nil && !info.IsDir() {
		h.files.ServeHTTP(w, r)
		return
	}

	// unknown api routes and missing assets get a plain 404
	if strings.HasPrefix(clean, "api/") || strings.Contains(path.Base(clean), ".") {
		h.logger.Debug("frontend asset not found", zap.String("path", r.URL.Path))
		http.NotFound(w, r)
		return
	}

	h.serveIndex(w, r)
}

func (h *spaHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(h.index); err != nil {
		h.logger.Warn("write frontend index", zap.Error(err))
	}
}
