// Package response renders the small set of status replies the server sends:
// JSON bodies for scripts, styled error pages for browsers, and the Basic
// authentication challenge.
package response

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Body is the JSON shape of every non-file reply
type Body struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

var defaultMessages = map[int]string{
	http.StatusOK:                    "OK",
	http.StatusBadRequest:            "Bad request",
	http.StatusForbidden:             "Access forbidden",
	http.StatusNotFound:              "Resource not recognised",
	http.StatusRequestEntityTooLarge: "Request body too large",
	http.StatusTooManyRequests:       "Rate limit exceeded",
	http.StatusInternalServerError:   "Server error",
}

// Renderer knows where the error pages live and which realm to challenge with
type Renderer struct {
	WebRoot string
	Realm   string
}

type options struct {
	message   string
	path      string
	beautiful bool
}

type Option func(*options)

func WithMessage(message string) Option {
	return func(o *options) { o.message = message }
}

func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// Beautiful asks for the HTML error page when one exists (403 and 404 only)
func Beautiful(beautiful bool) Option {
	return func(o *options) { o.beautiful = beautiful }
}

// Send writes a complete reply for status. It never fails: a missing error
// page falls back to JSON.
func (r *Renderer) Send(c *gin.Context, status int, opts ...Option) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if status == http.StatusUnauthorized {
		r.Challenge(c)
		return
	}

	if o.beautiful {
		if page, ok := r.errorPage(status); ok {
			c.Data(status, "text/html", page)
			return
		}
	}

	message := o.message
	if message == "" {
		message = defaultMessages[status]
	}
	if message == "" {
		message = http.StatusText(status)
	}
	c.JSON(status, Body{Status: status, Message: message, Path: o.path})
}

// Challenge asks the client to (re-)send credentials
func (r *Renderer) Challenge(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="`+r.Realm+`"`)
	c.Status(http.StatusUnauthorized)
	c.Writer.WriteHeaderNow()
}

func (r *Renderer) errorPage(status int) ([]byte, bool) {
	if status != http.StatusForbidden && status != http.StatusNotFound {
		log.Printf("Styled pages exist only for 403 and 404 (not %d), sending JSON", status)
		return nil, false
	}
	path := filepath.Join(r.WebRoot, strconv.Itoa(status)+".html")
	page, err := os.ReadFile(path)
	if err != nil {
		log.Printf("%s is not readable (%v), sending JSON", path, err)
		return nil, false
	}
	return page, true
}

// IsBrowserClient tells browsers from command line tools by User-Agent.
// Only used to pick between an HTML page and a JSON body.
func IsBrowserClient(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	return !strings.Contains(ua, "curl") && !strings.Contains(ua, "wget")
}
