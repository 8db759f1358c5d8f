// Package session implements the viewer session: the handshake gate that
// admits connections by device name, and the engine that runs the outbound
// frame pump and the inbound command pump over one admitted connection.
//
// The two pumps never wait on each other. The transport is full-duplex with
// exactly one writer per direction, so neither direction needs a lock.
// Whichever pump fails first closes the connection, which unblocks the other;
// teardown happens exactly once and the session is never reused.
package session
