package payload

import (
	"encoding/binary"
	"errors"
	"io"
	"net"

	"github.com/haskoin-go/peerd/pkg/wire/protocol"
)

// NetAddr is the IP/port/service abstraction carried inside a Version
// message and inside Addr gossip payloads.
type NetAddr struct {
	Timestamp uint32
	Services  protocol.ServiceFlag
	IP        [16]byte
	Port      uint16
}

// NewNetAddr builds a NetAddr from a dotted/hex IP and port.
func NewNetAddr(ip net.IP, port uint16, services protocol.ServiceFlag) NetAddr {
	var raw [16]byte
	copy(raw[:], ip.To16())
	return NetAddr{Services: services, IP: raw, Port: port}
}

// Addr returns the net.TCPAddr this NetAddr describes.
func (n NetAddr) Addr() *net.TCPAddr {
	return &net.TCPAddr{IP: net.IP(n.IP[:]), Port: int(n.Port)}
}

// netAddrSize is the wire size of a NetAddr: 4 (timestamp) + 8 (services)
// + 16 (IP) + 2 (port).
const netAddrSize = 4 + 8 + 16 + 2

func (n NetAddr) encode(w io.Writer) error {
	var buf [netAddrSize]byte
	binary.BigEndian.PutUint32(buf[0:4], n.Timestamp)
	binary.BigEndian.PutUint64(buf[4:12], uint64(n.Services))
	copy(buf[12:28], n.IP[:])
	binary.BigEndian.PutUint16(buf[28:30], n.Port)
	_, err := w.Write(buf[:])
	return err
}

func (n *NetAddr) decode(r io.Reader) error {
	var buf [netAddrSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	n.Timestamp = binary.BigEndian.Uint32(buf[0:4])
	n.Services = protocol.ServiceFlag(binary.BigEndian.Uint64(buf[4:12]))
	copy(n.IP[:], buf[12:28])
	n.Port = binary.BigEndian.Uint16(buf[28:30])
	return nil
}

// Version is our (or the remote's) handshake opener.
type Version struct {
	ProtocolVersion protocol.Version
	Services        protocol.ServiceFlag
	Timestamp       int64
	AddrRecv        NetAddr
	AddrSend        NetAddr
	Nonce           uint64
	UserAgent       string
	StartHeight     int32
	Relay           bool
}

var errUserAgentTooLong = errors.New("payload: user agent exceeds 255 bytes")

// Encode serializes the Version message onto w.
func (v *Version) Encode(w io.Writer) error {
	if len(v.UserAgent) > 255 {
		return errUserAgentTooLong
	}
	var hdr [4 + 8 + 8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(v.ProtocolVersion))
	binary.BigEndian.PutUint64(hdr[4:12], uint64(v.Services))
	binary.BigEndian.PutUint64(hdr[12:20], uint64(v.Timestamp))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if err := v.AddrRecv.encode(w); err != nil {
		return err
	}
	if err := v.AddrSend.encode(w); err != nil {
		return err
	}
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], v.Nonce)
	if _, err := w.Write(nonce[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(len(v.UserAgent))}); err != nil {
		return err
	}
	if _, err := io.WriteString(w, v.UserAgent); err != nil {
		return err
	}
	var tail [5]byte
	binary.BigEndian.PutUint32(tail[0:4], uint32(v.StartHeight))
	if v.Relay {
		tail[4] = 1
	}
	_, err := w.Write(tail[:])
	return err
}

// Decode reads a Version message from r.
func (v *Version) Decode(r io.Reader) error {
	var hdr [4 + 8 + 8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	v.ProtocolVersion = protocol.Version(binary.BigEndian.Uint32(hdr[0:4]))
	v.Services = protocol.ServiceFlag(binary.BigEndian.Uint64(hdr[4:12]))
	v.Timestamp = int64(binary.BigEndian.Uint64(hdr[12:20]))
	if err := v.AddrRecv.decode(r); err != nil {
		return err
	}
	if err := v.AddrSend.decode(r); err != nil {
		return err
	}
	var nonce [8]byte
	if _, err := io.ReadFull(r, nonce[:]); err != nil {
		return err
	}
	v.Nonce = binary.BigEndian.Uint64(nonce[:])
	var uaLen [1]byte
	if _, err := io.ReadFull(r, uaLen[:]); err != nil {
		return err
	}
	ua := make([]byte, uaLen[0])
	if _, err := io.ReadFull(r, ua); err != nil {
		return err
	}
	v.UserAgent = string(ua)
	var tail [5]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return err
	}
	v.StartHeight = int32(binary.BigEndian.Uint32(tail[0:4]))
	v.Relay = tail[4] != 0
	return nil
}

// Command implements the wire Message interface.
func (v *Version) Command() string { return CmdVersion }
