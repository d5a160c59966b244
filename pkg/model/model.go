// Package model defines the core domain types for MustangChat.
package model

import "net/netip"

// Endpoint identifies a client by its source address and port.
// It is the only key used to correlate datagrams with sessions.
type Endpoint = netip.AddrPort

// ParseEndpoint parses "host:port" into an Endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	return netip.ParseAddrPort(s)
}

// MustEndpoint is like ParseEndpoint but panics on error. Intended for tests
// and static configuration.
func MustEndpoint(s string) Endpoint {
	return netip.MustParseAddrPort(s)
}
