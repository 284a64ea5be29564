// Package auth decides, per request, whether a client may pass the
// single-secret authentication gate.
//
// A request carries an HTTP Basic style Authorization header. The decoded
// credential is hashed with SHA-256 and compared with the stored hash. Failed
// checks are counted per client address and, when ban enforcement is on, an
// address reaching the limit is refused from then on, even with the right
// credential. Only an administrative reset lifts a ban.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"log"
	"strings"

	"github.com/deemkeen/formgate/domain"
	"github.com/deemkeen/formgate/metrics"
	"github.com/deemkeen/formgate/util"
)

// Store is the slice of the ban store the authenticator needs
type Store interface {
	Disabled() bool
	Hash() string
	AttemptsFor(addr string) int
	RecordFailure(addr string) (int, error)
	RecordSuccess(addr string, limit int) (bool, error)
}

type Options struct {
	// Ban refuses an address once it reaches MaxAttempts failures.
	// Without it failed checks are neither counted nor escalated.
	Ban         bool
	MaxAttempts int
}

type Authenticator struct {
	store Store
	opts  Options
}

func New(store Store, opts Options) *Authenticator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Authenticator{store: store, opts: opts}
}

// Authenticate evaluates one request from addr carrying the given
// Authorization header value (empty when absent)
func (a *Authenticator) Authenticate(addr, header string) domain.AuthOutcome {
	outcome := a.authenticate(addr, header)
	metrics.RecordOutcome(outcome)
	return outcome
}

func (a *Authenticator) authenticate(addr, header string) domain.AuthOutcome {
	if a.store.Disabled() {
		return domain.AuthSuccess
	}

	// Bans are checked before the credential so a banned address can never
	// authenticate again
	if a.opts.Ban && a.store.AttemptsFor(addr) >= a.opts.MaxAttempts {
		return domain.AuthFail
	}

	secret, ok := DecodeCredential(header)
	if !ok {
		return domain.AuthRetry
	}

	if a.matches(secret) {
		limit := 0
		if a.opts.Ban {
			limit = a.opts.MaxAttempts
		}
		// The store re-checks the limit under its lock: a failure from the
		// same address may have completed a ban since the check above
		banned, err := a.store.RecordSuccess(addr, limit)
		if err != nil {
			metrics.RecordPersistError()
			log.Printf("Could not persist successful login of %s: %v", addr, err)
		}
		if banned {
			return domain.AuthFail
		}
		return domain.AuthSuccess
	}

	if !a.opts.Ban {
		return domain.AuthRetry
	}

	n, err := a.store.RecordFailure(addr)
	metrics.RecordAttemptFailure()
	if err != nil {
		metrics.RecordPersistError()
		log.Printf("Could not persist failed attempt of %s: %v", addr, err)
	}
	log.Printf("IP: %s has %d failed attempts", addr, n)

	if n >= a.opts.MaxAttempts {
		log.Printf("IP: %s is now banned", addr)
		return domain.AuthFail
	}
	return domain.AuthRetry
}

func (a *Authenticator) matches(secret []byte) bool {
	got := util.HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.store.Hash())) == 1
}

// DecodeCredential extracts the credential bytes from an Authorization header
// value. The last whitespace separated token is base64 decoded, so both
// "Basic dXNlcjpwYXNz" and a bare token are accepted. A missing or
// undecodable value reports false.
func DecodeCredential(header string) ([]byte, bool) {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(fields[len(fields)-1])
	if err != nil {
		return nil, false
	}
	return decoded, true
}
