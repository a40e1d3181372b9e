package httphandler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// HTTPMiddlewareFunc wraps a handler function with additional behaviour.
type HTTPMiddlewareFunc func(http.HandlerFunc) http.HandlerFunc

// HTTPMiddlewareFuncs is an ordered chain of middleware, applied so that
// the first element runs outermost.
type HTTPMiddlewareFuncs []HTTPMiddlewareFunc

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// AuthScheme is the Authorization scheme presented by workers, distinct
// from end-user bearer tokens.
const AuthScheme = "Worker"

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Wrap applies the middleware chain to a handler function.
func (m HTTPMiddlewareFuncs) Wrap(fn http.HandlerFunc) http.HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		fn = m[i](fn)
	}
	return fn
}

// WorkerAuth returns middleware which requires the request to carry the
// shared worker secret as "Authorization: Worker <secret>". When the secret
// is empty the surface is disabled and every request is rejected.
func WorkerAuth(secret string) HTTPMiddlewareFunc {
	return func(fn http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized), "worker surface disabled")
				return
			}
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || scheme != AuthScheme {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized), "missing worker credentials")
				return
			}
			if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(secret)) != 1 {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized), "invalid worker credentials")
				return
			}
			fn(w, r)
		}
	}
}
