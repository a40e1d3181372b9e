package httpclient

import (
	"net/http"
	"strconv"
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is a typed client for the dispatch worker front door.
type Client struct {
	*client.Client
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// AuthScheme is the Authorization scheme presented by workers. It must
// match the scheme expected by the front door.
const AuthScheme = "Worker"

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new front-door client with the given endpoint.
func New(endpoint string, opts ...client.ClientOpt) (*Client, error) {
	opts = append(opts, client.OptEndpoint(endpoint))
	c, err := client.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{Client: c}, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithSecret returns a client option which presents the shared worker
// secret on every request.
func WithSecret(secret string) client.ClientOpt {
	return client.OptReqToken(client.Token{Scheme: AuthScheme, Value: secret})
}

// IsNotFound reports whether an error is the front door rejecting an
// operation with a 404, which a worker treats as a lost lease rather than
// a transient failure. The status code must appear as its own token so
// that a path or byte count containing the digits does not count.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	if strings.Contains(text, http.StatusText(http.StatusNotFound)) {
		return true
	}
	status := strconv.Itoa(http.StatusNotFound)
	for _, field := range strings.Fields(text) {
		if strings.Trim(field, ":,.()") == status {
			return true
		}
	}
	return false
}
