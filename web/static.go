package web

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/deemkeen/formgate/middleware"
	"github.com/deemkeen/formgate/response"
	"github.com/deemkeen/formgate/util"
	"github.com/gin-gonic/gin"
)

const (
	viewInputPath   = "/view/input"
	viewProfilePath = "/view/profile"
)

// Server side files that must never be served, whatever the web root holds
var hiddenFiles = map[string]bool{
	"auth.json":          true,
	"auth.db":            true,
	"config.yaml":        true,
	"default_input.json": true,
	"weights.json":       true,
	".env":               true,
	"go.mod":             true,
	"go.sum":             true,
	"Dockerfile":         true,
}

// Supported extensions and the content type they are served with
var contentTypes = map[string]string{
	"ico":  "image/x-icon",
	"html": "text/html",
	"js":   "text/javascript",
	"css":  "text/css",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"json": "application/json",
}

// resolve maps a request path to a file. The second value is the path as
// shown to the client in a 404.
func (h *Handlers) resolve(urlPath string) (string, string) {
	switch urlPath {
	case "/":
		return filepath.Join(h.webRoot, "index.html"), "index.html"
	case "/form":
		return filepath.Join(h.webRoot, "psycho.html"), "psycho.html"
	case viewInputPath:
		return h.analyzer.InputPath(), "data/input.json"
	case viewProfilePath:
		return h.analyzer.ProfilePath(), "data/profile.json"
	}
	rel := strings.TrimPrefix(urlPath, "/")
	// Cleaning against "/" keeps ".." from climbing out of the web root
	clean := filepath.Clean("/" + filepath.FromSlash(rel))
	return filepath.Join(h.webRoot, clean), rel
}

// HandleGet serves files from the web root and the saved form data
func (h *Handlers) HandleGet(c *gin.Context) {
	urlPath := c.Request.URL.Path
	beautiful := response.IsBrowserClient(c.GetHeader("User-Agent"))
	file, shown := h.resolve(urlPath)

	if h.isHidden(file) {
		log.Printf("Warning: attempt to access hidden server file %s from %s", shown, middleware.ClientAddress(c.Request.RemoteAddr))
		h.render.Send(c, http.StatusNotFound, response.Beautiful(beautiful), response.WithPath(shown))
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(file), ".")
	ctype, supported := contentTypes[ext]
	if !supported || !util.FileExists(file) {
		switch urlPath {
		case viewInputPath:
			h.render.Send(c, http.StatusBadRequest, response.WithMessage("You need to submit the form!"))
		case viewProfilePath:
			h.render.Send(c, http.StatusBadRequest, response.WithMessage("You need to analyse the form!"))
		default:
			h.render.Send(c, http.StatusNotFound, response.Beautiful(beautiful), response.WithPath(shown))
		}
		return
	}

	content, err := loadContent(file, ctype)
	if err != nil {
		log.Printf("Could not send %s: %v", file, err)
		h.render.Send(c, http.StatusInternalServerError, response.WithMessage("Server misconfigured! Could not send content"))
		return
	}
	c.Data(http.StatusOK, ctype, content)
}

// isHidden reports server side files, either by well known name or because
// file is one of the configured credential stores
func (h *Handlers) isHidden(file string) bool {
	base := filepath.Base(file)
	if hiddenFiles[base] || strings.HasSuffix(base, ".go") {
		return true
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return true
	}
	return h.secretFiles[abs]
}

// loadContent reads a file for serving. JSON documents get "status":"ok" added.
func loadContent(file, ctype string) ([]byte, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if ctype != "application/json" {
		return content, nil
	}

	var doc map[string]any
	if err := sonic.ConfigStd.Unmarshal(content, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s does not hold an object", file)
	}
	doc["status"] = "ok"
	return sonic.ConfigStd.Marshal(doc)
}
