package web

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/deemkeen/formgate/analysis"
	"github.com/deemkeen/formgate/response"
	"github.com/deemkeen/formgate/util"
	"github.com/gin-gonic/gin"
)

const DefaultInputFile = "default_input.json"

// Handlers serves the site. One instance is shared by all connections.
type Handlers struct {
	webRoot  string
	render   *response.Renderer
	analyzer *analysis.Analyzer

	// secretFiles holds the absolute paths of the configured credential stores
	secretFiles map[string]bool

	// formMu guards the saved form files across submit and analyze
	formMu sync.Mutex
}

func NewHandlers(conf *util.AppConfig, render *response.Renderer, analyzer *analysis.Analyzer) *Handlers {
	h := &Handlers{
		webRoot:     conf.Conf.WebRoot,
		render:      render,
		analyzer:    analyzer,
		secretFiles: make(map[string]bool),
	}
	for _, f := range []string{conf.Conf.AuthFile, conf.Conf.AuthDb} {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			h.secretFiles[abs] = true
		}
	}
	return h
}

// readBody returns the request body, answering 413 itself when it is too large
func (h *Handlers) readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.render.Send(c, http.StatusRequestEntityTooLarge)
			return nil, false
		}
		log.Printf("Could not read request body: %v", err)
		h.render.Send(c, http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// HandleSubmit saves the questionnaire answers
func (h *Handlers) HandleSubmit(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	var data any
	if c.ContentType() != "application/json" || sonic.ConfigStd.Unmarshal(body, &data) != nil {
		h.render.Send(c, http.StatusBadRequest, response.WithMessage("Improperly formatted JSON or missing Content-Type header"))
		return
	}

	h.formMu.Lock()
	defer h.formMu.Unlock()

	// The front end sends "repeat" when the form page is reloaded after submitting
	if data == "repeat" {
		message := "You need to fill in the form!"
		if util.FileExists(h.analyzer.InputPath()) {
			message = "Form already submitted!"
		}
		h.render.Send(c, http.StatusBadRequest, response.WithMessage(message))
		return
	}

	form, isObject := data.(map[string]any)
	if !isObject {
		h.render.Send(c, http.StatusBadRequest, response.WithMessage("Improperly formatted JSON or missing Content-Type header"))
		return
	}

	// Scripted clients may leave answers out
	h.fillDefaults(form)

	if err := h.analyzer.SaveInput(form); err != nil {
		log.Printf("Could not save form: %v", err)
		h.render.Send(c, http.StatusInternalServerError, response.WithMessage("Server is misconfigured! Could not save the form"))
		return
	}
	h.render.Send(c, http.StatusOK, response.WithMessage("Form responses saved!"))
}

func (h *Handlers) fillDefaults(form map[string]any) {
	path := filepath.Join(h.webRoot, DefaultInputFile)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: %s not found, unable to copy default inputs if needed", path)
		return
	}
	var defaults map[string]any
	if err := sonic.ConfigStd.Unmarshal(data, &defaults); err != nil {
		log.Printf("Warning: %s is not valid: %v", path, err)
		return
	}
	for k, v := range defaults {
		if _, ok := form[k]; !ok {
			form[k] = v
		}
	}
}

// HandleAnalyze builds the profile for the saved form
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && string(trimmed) != "null" {
		h.render.Send(c, http.StatusBadRequest, response.WithMessage("Unexpected payload for /analyze URI"))
		return
	}

	h.formMu.Lock()
	defer h.formMu.Unlock()

	_, err := h.analyzer.Analyse(c.Request.Context())
	switch {
	case err == nil:
		h.render.Send(c, http.StatusOK, response.WithMessage("Profile successfully created!"))
	case errors.Is(err, analysis.ErrNotSubmitted):
		h.render.Send(c, http.StatusBadRequest, response.WithMessage("You need to submit the form!"))
	case errors.Is(err, analysis.ErrAlreadyAnalysed):
		h.render.Send(c, http.StatusBadRequest, response.WithMessage("Form already analysed!"))
	default:
		log.Printf("Error during analysis: %v", err)
		h.render.Send(c, http.StatusInternalServerError, response.WithMessage("Server is misconfigured! There was an error during analysis"))
	}
}

// HandleNotFound answers requests no route matched
func (h *Handlers) HandleNotFound(c *gin.Context) {
	h.render.Send(c, http.StatusNotFound, response.WithPath(c.Request.URL.Path))
}
