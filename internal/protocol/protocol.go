// Package protocol implements the wire framing described in spec.md §4.F:
// one encoded command record per TCP connection, one reply terminated by
// closing the connection. There is no length prefix on either side — the
// connection boundary itself is the frame. Grounded on the teacher's
// internal/network/server.go for the read-then-reply connection shape,
// with the length-prefixed protobuf framing replaced by the spec's
// close-terminated text framing (see also original_source's
// kvs_server.rs, which frames replies the same way over a raw TcpStream).
package protocol

import (
	"bytes"
	"errors"
	"io"

	"kvs/internal/codec"
)

// NotFound is the literal reply body for a Get of an unbound key or a
// Remove of an unbound key.
const NotFound = "Key not found"

// ErrRequestTooLarge is returned by ReadRequest when a request exceeds
// the configured maximum size.
var ErrRequestTooLarge = errors.New("protocol: request exceeds maximum size")

// ReadRequest reads a full request payload from r (the entire remainder
// of the connection, since the client sends its request and then closes
// or stops writing), rejecting anything over maxBytes, and decodes it as
// a single command record using the same encoding as the log (§4.A).
func ReadRequest(r io.Reader, maxBytes int64) (codec.Record, error) {
	limited := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return codec.Record{}, err
	}
	if int64(len(data)) > maxBytes {
		return codec.Record{}, ErrRequestTooLarge
	}
	line := bytes.TrimRight(data, "\r\n")
	return codec.Decode(line)
}

// WriteResponse writes body as the sole reply payload. The caller closes
// the connection afterward; that close is what frames the reply for the
// client, not anything written here.
func WriteResponse(w io.Writer, body []byte) error {
	_, err := w.Write(body)
	return err
}
