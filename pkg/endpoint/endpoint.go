// Package endpoint turns a loosely written collector address into the
// canonical ws:// or wss:// URI the console client dials.
package endpoint

import "strings"

// Default is used when no address was supplied at all.
const Default = "ws://localhost:9090"

const defaultPort = "9090"

// ResolveOptional returns Default for a nil address and Resolve(*raw) otherwise.
func ResolveOptional(raw *string) string {
	if raw == nil {
		return Default
	}
	return Resolve(*raw)
}

// Resolve normalizes raw into an endpoint URI. It never fails: a malformed
// host passes through and is left for the dialer to reject.
//
// The default port is only appended when there is no explicit port and the
// host part looks like a dotted IPv4 address. The host part is taken after the
// first ':' and still carries the "//" of the scheme, so a bare "localhost"
// does not receive a port while the nil address does.
func Resolve(raw string) string {
	uri := strings.TrimSpace(raw)
	if !strings.HasPrefix(uri, "ws://") && !strings.HasPrefix(uri, "wss://") {
		uri = "ws://" + uri
	}

	parts := strings.Split(uri, ":")
	switch len(parts) {
	case 3:
		// scheme://host:port
		return uri
	case 2:
		host := parts[1]
		if len(strings.Split(host, ".")) == 4 || host == "localhost" {
			return uri + ":" + defaultPort
		}
		return uri
	default:
		return uri
	}
}

// Secure reports whether the endpoint uses TLS.
func Secure(uri string) bool {
	return strings.HasPrefix(uri, "wss://")
}
