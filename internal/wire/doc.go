// Package wire implements the picamd wire protocol.
//
// Every message on the stream is framed as a 1-byte type tag followed by a
// 4-byte big-endian payload length and the payload itself. FRAME carries one
// encoded JPEG image, HELLO carries a device name, COMMAND carries a tagged
// pan/tilt request, and PING/BYE are empty control messages.
//
// TCP delivers the stream in arbitrary chunks, so Decoder accumulates input
// across reads and emits one complete Message at a time.
package wire
