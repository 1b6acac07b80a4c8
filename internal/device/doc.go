// Package device models the controller side of the upload pipeline: the
// transport capability (enumeration, connections, typed handshakes, raw user
// I/O) and the Session protocol state machine built on top of it: link
// classification, radio channel negotiation, checksum diffing and ordered
// file transfers.
//
// Packet framing and encoding live behind the Connection interface; the
// serial subpackage provides the concrete implementation.
package device
