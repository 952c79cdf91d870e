package payload

import (
	"encoding/binary"
	"io"
)

// Ping carries a random nonce the remote must echo back in a Pong.
type Ping struct {
	Nonce uint64
}

// Encode writes the ping nonce.
func (p Ping) Encode(w io.Writer) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], p.Nonce)
	_, err := w.Write(buf[:])
	return err
}

// Decode reads the ping nonce.
func (p *Ping) Decode(r io.Reader) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	p.Nonce = binary.BigEndian.Uint64(buf[:])
	return nil
}

// Command implements Message.
func (Ping) Command() string { return CmdPing }

// Pong echoes a Ping's nonce back to its sender.
type Pong struct {
	Nonce uint64
}

// Encode writes the pong nonce.
func (p Pong) Encode(w io.Writer) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], p.Nonce)
	_, err := w.Write(buf[:])
	return err
}

// Decode reads the pong nonce.
func (p *Pong) Decode(r io.Reader) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	p.Nonce = binary.BigEndian.Uint64(buf[:])
	return nil
}

// Command implements Message.
func (Pong) Command() string { return CmdPong }
