// Package wire implements the length-prefixed framing used to exchange
// opaque key and ciphertext blobs between the two protocol roles.
//
// Every message on the channel is a frame: an 8-byte big-endian unsigned
// length followed by exactly that many payload bytes. The framing carries
// no resynchronization marker, so any short read or write is fatal to the
// session; callers must abandon the connection rather than retry.
//
// Payload contents are entirely opaque to this package. Serialization of
// parameters, keys and ciphertexts is owned by the fhe package.
package wire
