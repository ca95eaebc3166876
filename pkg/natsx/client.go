// Package natsx connects to the NATS server events are published on.
package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// URL returns the address of the NATS server events are published on.
// It reads the NATS_URL environment variable and falls back to
// nats.DefaultURL when the variable is unset or empty.
//
// Returns:
//   - string: The server url to connect to.
func URL() string {
	if u := os.Getenv("NATS_URL"); u != "" {
		return u
	}
	return nats.DefaultURL
}

// NewClient creates a new connection to the NATS server returned by URL.
// When no options are given, the connection is configured with a client
// name "quill" and compression enabled. Passing any option replaces these
// defaults entirely.
//
// Parameters:
//   - opts: Options passed to nats.Connect.
//
// Returns:
//   - *nats.Conn: A pointer to the established NATS connection.
//   - error: An error if the connection could not be established.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name("quill"), nats.Compression(true))
	}
	return nats.Connect(URL(), opts...)
}
