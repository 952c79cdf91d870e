package payload

import (
	"encoding/binary"
	"io"
)

// Addr gossips a batch of NetAddr entries a connected peer has learned
// about. Grounded on AddrMessage (mgetaddr.go / net_addr.go),
// generalized to a plain slice.
type Addr struct {
	List []NetAddr
}

// Encode writes the address count followed by each entry.
func (a Addr) Encode(w io.Writer) error {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(a.List)))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	for _, na := range a.List {
		if err := na.encode(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads an address count followed by that many entries.
func (a *Addr) Decode(r io.Reader) error {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return err
	}
	count := binary.BigEndian.Uint32(n[:])
	a.List = make([]NetAddr, count)
	for i := range a.List {
		if err := a.List[i].decode(r); err != nil {
			return err
		}
	}
	return nil
}

// Command implements Message.
func (Addr) Command() string { return CmdAddr }

// GetAddr requests the remote's known-good address list.
type GetAddr struct{}

// Encode writes nothing; GetAddr has an empty body.
func (GetAddr) Encode(io.Writer) error { return nil }

// Decode reads nothing; GetAddr has an empty body.
func (*GetAddr) Decode(io.Reader) error { return nil }

// Command implements Message.
func (GetAddr) Command() string { return CmdGetAddr }
