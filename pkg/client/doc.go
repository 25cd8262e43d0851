// Package client provides the blocking request/response layer over a
// SimLink channel.
//
// A Client performs the Hello version exchange when it opens and then
// exposes Request: send one typed message, block for the response, verify
// the response type echoes the request type, and unwrap the result payload.
// Simulator-reported errors embedded in a response come back as *wire.SimError
// or *wire.ValueError.
//
// The protocol is strictly half-duplex per connection: one request, then its
// response. A consumer needing concurrent request streams opens a second
// Client.
package client
