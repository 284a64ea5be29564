package middleware

import (
	"log"
	"net"
	"net/http"

	"github.com/deemkeen/formgate/auth"
	"github.com/deemkeen/formgate/domain"
	"github.com/deemkeen/formgate/response"
	"github.com/gin-gonic/gin"
)

// Gate is the part of the Authenticator the middleware needs
type Gate interface {
	Authenticate(addr, header string) domain.AuthOutcome
}

var _ Gate = (*auth.Authenticator)(nil)

// AuthGate runs the authentication gate in front of every route, including
// unmatched ones. With enabled false every request goes through.
func AuthGate(gate Gate, r *response.Renderer, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		addr := ClientAddress(c.Request.RemoteAddr)
		outcome := gate.Authenticate(addr, c.GetHeader("Authorization"))

		switch outcome {
		case domain.AuthSuccess:
			c.Next()
		case domain.AuthRetry:
			r.Challenge(c)
			c.Abort()
		case domain.AuthFail:
			log.Printf("Blocked request from banned IP: %s", addr)
			r.Send(c, http.StatusForbidden, response.Beautiful(response.IsBrowserClient(c.GetHeader("User-Agent"))))
			c.Abort()
		default:
			log.Printf("Unknown auth outcome %d for %s", outcome, addr)
			r.Send(c, http.StatusInternalServerError)
			c.Abort()
		}
	}
}

// ClientAddress strips the port from a peer address. Anything that does not
// parse as host:port is used as is.
func ClientAddress(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
