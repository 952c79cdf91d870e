package payload

import "io"

// VerAck acknowledges a received Version; it carries no data, grounded on
// VerackMessage (mverack.go).
type VerAck struct{}

// Encode writes nothing; VerAck has an empty body.
func (VerAck) Encode(io.Writer) error { return nil }

// Decode reads nothing; VerAck has an empty body.
func (*VerAck) Decode(io.Reader) error { return nil }

// Command implements Message.
func (VerAck) Command() string { return CmdVerAck }
