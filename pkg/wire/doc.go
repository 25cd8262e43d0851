// Package wire implements the structured message dialect spoken over a
// SimLink channel.
//
// Every message is a map with a "type" string discriminator. A request
// carries its parameters as additional keys; the simulator's response echoes
// the request type and carries its payload under "result". A response may
// instead embed an error under "error" or "valueError", which this package
// surfaces as *SimError and *ValueError.
//
// Messages are CBOR-encoded. The transport below treats the encoded bytes as
// an opaque payload; this package never sees length prefixes or sockets.
package wire
