package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// Secure adds the standard security headers. Development mode turns the
// checks off so local testing over plain HTTP keeps working.
func Secure(development bool) gin.HandlerFunc {
	s := secure.New(secure.Options{
		ContentTypeNosniff: true,
		FrameDeny:          true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "same-origin",
		IsDevelopment:      development,
	})

	return func(c *gin.Context) {
		if err := s.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		// secure may have answered with a redirect
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
		}
	}
}
