// Package bus carries kinematic states and frames between processes.
//
// A packet is a two byte magic (0x0D 0xA4), a 24-bit little-endian length
// and a protobuf-encoded Envelope. Sessions with the same conference id see
// each other's traffic, either in process (Hub) or over IPv4 multicast (UDP).
package bus
